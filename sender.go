// Package qdbsender implements a QuestDB Influx Line Protocol client: a
// fluent row builder backed by a chunked buffer (internal/wire), an
// explicit row-lifecycle state machine (internal/state), and a pluggable
// HTTP or TCP transport (internal/transport) with auto-flush and
// HTTP-only transaction support.
package qdbsender

import (
	"context"
	"time"

	"github.com/lineflux/qdbsender/internal/config"
	qerr "github.com/lineflux/qdbsender/errors"
	"github.com/lineflux/qdbsender/internal/protocol"
	"github.com/lineflux/qdbsender/internal/transport"
	"github.com/lineflux/qdbsender/internal/wire"
)

// flusher is the capability every transport (HTTP or TCP) provides: send
// the buffer's committed bytes and release resources on shutdown.
type flusher interface {
	Flush(ctx context.Context, buf transport.Flushable) (time.Time, error)
	Close() error
}

// Sender is a single-table-at-a-time ILP row builder bound to one
// transport connection. It is not safe for concurrent use: callers that
// need concurrent ingestion should use one Sender per goroutine.
type Sender struct {
	opts *config.Options
	buf  *wire.Buffer
	tr   flusher

	lastFlush time.Time
	errored   bool
	closed    bool

	withinTransaction bool
	txTable           string
}

// FromConf parses conf (the "<scheme>::k=v;…;" grammar) and dials the
// resulting transport. Any opts override fields the configuration string
// also set, applied after parsing.
func FromConf(ctx context.Context, conf string, opts ...Option) (*Sender, error) {
	o, err := config.Parse(conf)
	if err != nil {
		return nil, err
	}
	return newSender(ctx, o, opts)
}

// FromOptions builds a Sender programmatically from a scheme and address,
// with every other field taking its protocol default unless overridden by
// opts. It is the functional-options counterpart to FromConf.
func FromOptions(ctx context.Context, scheme, addr string, opts ...Option) (*Sender, error) {
	s, ok := protocol.ParseScheme(scheme)
	if !ok {
		return nil, qerr.Newf(qerr.ConfigError, "unsupported scheme %q", scheme)
	}
	o, err := config.New(s, addr)
	if err != nil {
		return nil, err
	}
	return newSender(ctx, o, opts)
}

func newSender(ctx context.Context, o *config.Options, opts []Option) (*Sender, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	var tr flusher
	var err error
	if o.Scheme.IsHTTP() {
		tr, err = transport.NewHTTP(o)
	} else {
		tr, err = transport.NewTCP(ctx, o)
	}
	if err != nil {
		return nil, err
	}

	return &Sender{
		opts:      o,
		buf:       wire.NewBuffer(o.InitBufSize, o.MaxBufSize, o.MaxNameLen),
		tr:        tr,
		lastFlush: farFuture(),
	}, nil
}

// farFuture is the initial last_flush value (§4.5): it must never look
// overdue before the first successful flush.
func farFuture() time.Time {
	return time.Now().AddDate(100, 0, 0)
}

// Table opens a new row for table name. In transaction mode, name must
// match the transaction's table.
func (s *Sender) Table(name string) error {
	if s.errored {
		return qerr.New(qerr.InvalidApiCall, "sender is in an error state; construct a new Sender")
	}
	if s.withinTransaction && name != s.txTable {
		return qerr.Newf(qerr.InvalidApiCall, "table %q does not match the open transaction's table %q", name, s.txTable)
	}
	return s.buf.Table(name)
}

// Symbol appends a tag column to the open row.
func (s *Sender) Symbol(name, value string) error {
	return s.buf.Symbol(name, value)
}

// StringColumn appends a string field to the open row.
func (s *Sender) StringColumn(name, value string) error {
	return s.buf.StringColumn(name, value)
}

// Int64Column appends an integer field to the open row.
func (s *Sender) Int64Column(name string, value int64) error {
	return s.buf.Int64Column(name, value)
}

// Float64Column appends a floating-point field to the open row.
func (s *Sender) Float64Column(name string, value float64) error {
	return s.buf.Float64Column(name, value)
}

// BoolColumn appends a boolean field to the open row.
func (s *Sender) BoolColumn(name string, value bool) error {
	return s.buf.BoolColumn(name, value)
}

// TimestampColumn appends a microsecond-precision timestamp field to the
// open row, distinct from the row's own designated timestamp.
func (s *Sender) TimestampColumn(name string, micros int64) error {
	return s.buf.TimestampColumn(name, micros)
}

// CancelRow discards the row currently open, rewinding the buffer to the
// last committed line.
func (s *Sender) CancelRow() error {
	return s.buf.CancelRow()
}

// At closes the open row with an explicit designated timestamp in
// nanoseconds since the epoch, then runs the auto-flush check.
func (s *Sender) At(ctx context.Context, nanos int64) error {
	if err := s.buf.At(nanos); err != nil {
		return err
	}
	return s.maybeAutoFlush(ctx)
}

// AtNow closes the open row without a client timestamp, then runs the
// auto-flush check.
func (s *Sender) AtNow(ctx context.Context) error {
	if err := s.buf.AtNow(); err != nil {
		return err
	}
	return s.maybeAutoFlush(ctx)
}

// maybeAutoFlush implements §4.6: after each completed row, outside a
// transaction, flush once any of the three thresholds trip.
func (s *Sender) maybeAutoFlush(ctx context.Context) error {
	if !s.opts.AutoFlush || s.withinTransaction {
		return nil
	}
	trip := (s.opts.AutoFlushRows > 0 && s.buf.RowCount() >= s.opts.AutoFlushRows) ||
		(s.opts.AutoFlushBytes > 0 && s.buf.Len() >= s.opts.AutoFlushBytes) ||
		(s.opts.AutoFlushIntervalMS > 0 && time.Since(s.lastFlush) >= time.Duration(s.opts.AutoFlushIntervalMS)*time.Millisecond)
	if !trip {
		return nil
	}
	return s.Flush(ctx)
}

// Flush sends every buffered row to the server and clears the buffer on
// success. It is illegal to call Flush while a row is still open or
// inside a transaction (use Commit/Rollback instead).
func (s *Sender) Flush(ctx context.Context) error {
	if s.withinTransaction {
		return qerr.New(qerr.InvalidApiCall, "flush called inside a transaction; use Commit or Rollback")
	}
	return s.send(ctx)
}

func (s *Sender) send(ctx context.Context) error {
	if s.buf.HasPendingRow() {
		return qerr.New(qerr.InvalidApiCall, "cannot send with an open, uncommitted row")
	}
	if s.buf.Len() == 0 {
		s.lastFlush = time.Now()
		return nil
	}
	flushedAt, err := s.tr.Flush(ctx, s.buf)
	if err != nil {
		s.errored = true
		return err
	}
	s.buf.Clear()
	if flushedAt.IsZero() {
		flushedAt = time.Now()
	}
	s.lastFlush = flushedAt
	return nil
}

// Transaction opens HTTP-only transaction mode on an empty buffer,
// restricting every subsequent Table call to table until Commit or
// Rollback. It is illegal on a TCP sender or while a transaction is
// already open.
func (s *Sender) Transaction(table string) error {
	if !s.opts.Scheme.IsHTTP() {
		return qerr.New(qerr.HttpNotSupported, "transactions are only supported over http/https")
	}
	if s.withinTransaction {
		return qerr.New(qerr.InvalidApiCall, "a transaction is already open")
	}
	if s.buf.Len() != 0 || s.buf.HasPendingRow() {
		return qerr.New(qerr.InvalidApiCall, "transaction requires an empty buffer")
	}
	s.withinTransaction = true
	s.txTable = table
	return nil
}

// Commit sends the transaction's buffered rows as a single request and
// exits transaction mode. On failure the sender still exits the
// transaction (so the caller can retry from a clean state), and the
// buffer is preserved rather than cleared, so the rows are still present
// for a retried Flush once the caller has dealt with the error.
func (s *Sender) Commit(ctx context.Context) error {
	if !s.withinTransaction {
		return qerr.New(qerr.InvalidApiCall, "commit called with no open transaction")
	}
	err := s.send(ctx)
	s.withinTransaction = false
	s.txTable = ""
	return err
}

// Rollback discards the transaction's buffered rows without contacting
// the server.
func (s *Sender) Rollback() error {
	if !s.withinTransaction {
		return qerr.New(qerr.InvalidApiCall, "rollback called with no open transaction")
	}
	s.buf.Clear()
	s.withinTransaction = false
	s.txTable = ""
	return nil
}

// Close releases the underlying transport connection. If auto_flush is
// enabled and the sender has not transitioned to an error state, Close
// performs a final flush first and propagates any failure rather than
// swallowing it. Close is idempotent.
func (s *Sender) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var flushErr error
	if s.opts.AutoFlush && !s.errored && !s.withinTransaction {
		flushErr = s.send(ctx)
	}
	closeErr := s.tr.Close()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Options returns the sender's resolved, immutable configuration.
func (s *Sender) Options() *config.Options { return s.opts }
