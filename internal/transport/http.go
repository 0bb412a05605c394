package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/lineflux/qdbsender/internal/config"
	qerr "github.com/lineflux/qdbsender/errors"
	"github.com/lineflux/qdbsender/internal/protocol"
)

// Flushable is the subset of *wire.Buffer a transport needs: enough to
// stream the committed bytes and know how large the request body is. It
// lets this package avoid importing internal/wire, keeping the dependency
// direction flowing from wire/state toward transport, not back.
type Flushable interface {
	io.WriterTo
	Len() int
}

// HTTP implements the HTTP(S) ILP transport (spec.md §4.4): a single POST
// per flush to /write, bounded retries on a curated set of transient
// failures, and a pooled, idle-capped *http.Client shared across flushes.
type HTTP struct {
	client   *http.Client
	opts     *config.Options
	endpoint string
}

// NewHTTP builds an HTTP transport from validated Options: connection
// pooling via http.Transport.IdleConnTimeout, and, for https, a TLS config
// honoring tls_verify/tls_roots.
func NewHTTP(o *config.Options) (*HTTP, error) {
	tlsConf, err := buildTLSConfig(o)
	if err != nil {
		return nil, err
	}

	rt := &http.Transport{
		IdleConnTimeout: time.Duration(o.PoolTimeoutMS) * time.Millisecond,
		TLSClientConfig: tlsConf,
	}

	scheme := "http"
	if o.Scheme.IsTLS() {
		scheme = "https"
	}

	return &HTTP{
		client:   &http.Client{Transport: rt},
		opts:     o,
		endpoint: fmt.Sprintf("%s://%s%s", scheme, o.Addr(), protocol.HTTPWritePath),
	}, nil
}

// Flush POSTs the buffer's committed bytes to /write, retrying transient
// failures until retry_timeout elapses. The per-attempt deadline scales
// with the payload size via request_min_throughput, so large batches don't
// spuriously time out on slow links. The buffer is streamed straight onto
// the request body (see bufReader below) rather than copied into a
// contiguous byte slice first.
func (h *HTTP) Flush(ctx context.Context, buf Flushable) (time.Time, error) {
	budget := time.Duration(h.opts.RetryTimeoutMS) * time.Millisecond
	deadline := time.Now().Add(budget)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return time.Time{}, qerr.Wrap(qerr.SocketError, "flush canceled", ctx.Err())
		}

		flushedAt, err := h.attempt(ctx, buf)
		if err == nil {
			return flushedAt, nil
		}
		lastErr = err

		if !isRetriable(err) {
			return time.Time{}, err
		}
		if time.Now().After(deadline) {
			return time.Time{}, qerr.Wrap(qerr.ServerFlushError, "retry budget exhausted", lastErr)
		}

		jitter := time.Duration(5+rand.Intn(11)) * time.Millisecond
		select {
		case <-ctx.Done():
			return time.Time{}, qerr.Wrap(qerr.SocketError, "flush canceled during retry backoff", ctx.Err())
		case <-time.After(jitter):
		}
	}
}

// bufReader turns a Flushable into a one-shot io.ReadCloser by streaming
// buf.WriteTo into the write end of an in-memory pipe on a background
// goroutine. http.Client always closes a request's Body, on both success
// and failure, so the goroutine never leaks waiting for a reader that will
// never come.
func bufReader(buf Flushable) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		_, err := buf.WriteTo(pw)
		_ = pw.CloseWithError(err)
	}()
	return pr
}

func (h *HTTP) attempt(ctx context.Context, buf Flushable) (time.Time, error) {
	length := buf.Len()
	throughputMS := int64(0)
	if h.opts.RequestMinThroughput > 0 {
		throughputMS = int64(length) * 1000 / int64(h.opts.RequestMinThroughput)
	}
	timeout := time.Duration(h.opts.RequestTimeoutMS)*time.Millisecond + time.Duration(throughputMS)*time.Millisecond

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, h.endpoint, bufReader(buf))
	if err != nil {
		return time.Time{}, qerr.Wrap(qerr.InvalidApiCall, "failed to build flush request", err)
	}
	req.Header.Set("Content-Type", protocol.ContentType)
	req.ContentLength = int64(length)
	req.GetBody = func() (io.ReadCloser, error) { return bufReader(buf), nil }
	h.setAuth(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return time.Time{}, classifyDoErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for keep-alive reuse, status already decided success
		return parseFlushDate(resp.Header.Get("Date")), nil
	}

	return time.Time{}, classifyStatusErr(resp)
}

// parseFlushDate extracts the server's Date response header as the
// authoritative last_flush timestamp (spec.md §4.4). An empty or
// unparseable header yields the zero Time, and the caller falls back to
// its own wall clock.
func parseFlushDate(header string) time.Time {
	if header == "" {
		return time.Time{}
	}
	t, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *HTTP) setAuth(req *http.Request) {
	switch {
	case h.opts.HasBasicAuth():
		req.SetBasicAuth(h.opts.Username, h.opts.Password)
	case h.opts.HasBearerAuth():
		req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	}
}

// writeErrorBody is the JSON shape QuestDB's /write endpoint returns on a
// rejected line.
type writeErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	ErrorID string `json:"errorId"`
}

func classifyStatusErr(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body writeErrorBody
	msg := string(raw)
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		msg = fmt.Sprintf("%s (line %d, errorId %s)", body.Message, body.Line, body.ErrorID)
	}

	err := qerr.Newf(qerr.ServerFlushError, "server rejected write with status %d: %s", resp.StatusCode, msg)
	if protocol.IsRetriableStatus(resp.StatusCode) {
		return &retriableError{err: err}
	}
	return err
}

func classifyDoErr(err error) error {
	wrapped := qerr.Wrap(qerr.SocketError, "http request failed", err)
	if isConnRefused(err) || isNetTimeout(err) {
		return &retriableError{err: wrapped}
	}
	return wrapped
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// retriableError marks an error as eligible for the retry loop without
// changing its observable message or Code via Unwrap.
type retriableError struct{ err error }

func (r *retriableError) Error() string { return r.err.Error() }
func (r *retriableError) Unwrap() error { return r.err }

func isRetriable(err error) bool {
	var r *retriableError
	return errors.As(err, &r)
}

// Close releases pooled connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
