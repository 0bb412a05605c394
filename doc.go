// Package qdbsender implements a client for QuestDB's Influx Line Protocol
// (ILP): a fluent row builder backed by a chunked buffer, validated table
// and column names, and a pluggable HTTP or TCP transport with optional
// auto-flush and HTTP-only transactions.
//
// # Overview
//
// QuestDB ingests time-series data over a text line protocol:
//
//	table,tag=value field=value,field2=value2 1619509249714000000
//
// This package builds that wire format incrementally — one column at a
// time — and flushes completed rows to the server either over a single
// pooled HTTP connection (retried on transient failures) or a single
// long-lived TCP connection (authenticated once at connect time).
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/lineflux/qdbsender"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    sender, err := qdbsender.FromConf(ctx, "http::addr=localhost:9000;")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer sender.Close(ctx)
//
//	    if err := sender.Table("trades"); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := sender.Symbol("pair", "USDGBP"); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := sender.Float64Column("price", 0.83679); err != nil {
//	        log.Fatal(err)
//	    }
//	    if err := sender.AtNow(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    if err := sender.Flush(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Row Builder
//
// A row is built by calling Table once, any number of Symbol and *Column
// calls, then exactly one of At or AtNow to commit it. CancelRow discards
// an open row and rewinds the buffer to the last committed line. Calling
// these out of order (a second Table before At, a Symbol after a field)
// returns an InvalidApiCall error without corrupting buffered data.
//
// # Auto-Flush
//
// By default the sender flushes automatically once any of three
// thresholds trips after a row is committed: row count (auto_flush_rows),
// buffered byte size (auto_flush_bytes), or wall-clock time since the last
// flush (auto_flush_interval). Disable all three with WithAutoFlush(false)
// or the "auto_flush=off;" configuration key to batch manually.
//
// # Transactions
//
// HTTP senders support single-table transactions: Transaction locks the
// sender to one table name, Commit sends the accumulated rows as one
// request, and Rollback discards them without contacting the server.
// Transactions are not available over tcp/tcps, where a flush has no
// server acknowledgment to roll back against.
//
// # Error Handling
//
// Every public method returns an *errors.IngressError carrying a Code, from
// the importable "github.com/lineflux/qdbsender/errors" package:
//
//	import qerr "github.com/lineflux/qdbsender/errors"
//
//	if err := sender.Table(name); err != nil {
//	    var ie *qerr.IngressError
//	    if errors.As(err, &ie) && ie.Code == qerr.InvalidName {
//	        // handle a rejected table name
//	    }
//	}
//
// A SocketError or ServerFlushError leaves the Sender in an error state;
// construct a new one rather than continuing to use it.
//
// # Concurrency
//
// A Sender is not safe for concurrent use. Give each goroutine its own
// Sender, or serialize access with external locking.
//
// # Resource Management
//
// Always Close a Sender. When auto-flush is enabled, and unless the sender
// is already in an error state or has an open transaction, Close performs
// one final flush before releasing the underlying connection; with
// auto-flush disabled, Close sends nothing and unflushed rows are dropped.
//
//	sender, err := qdbsender.FromConf(ctx, conf)
//	if err != nil {
//	    return err
//	}
//	defer sender.Close(ctx)
package qdbsender
