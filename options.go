package qdbsender

import (
	"github.com/lineflux/qdbsender/internal/config"
	qerr "github.com/lineflux/qdbsender/errors"
)

// Option configures a Sender's resolved Options before its transport is
// dialed. Options passed to FromConf are applied after the configuration
// string is parsed, letting a caller override individual fields without
// hand-building the whole grammar string.
type Option func(*config.Options) error

// WithAutoFlush turns the row-count/byte-size/interval auto-flush
// triggers on or off.
func WithAutoFlush(enabled bool) Option {
	return func(o *config.Options) error {
		o.AutoFlush = enabled
		return nil
	}
}

// WithAutoFlushRows sets the row-count auto-flush threshold. n<=0
// disables this trigger.
func WithAutoFlushRows(n int) Option {
	return func(o *config.Options) error {
		o.AutoFlushRows = n
		return nil
	}
}

// WithAutoFlushBytes sets the buffered-byte-size auto-flush threshold.
// n<=0 disables this trigger.
func WithAutoFlushBytes(n int) Option {
	return func(o *config.Options) error {
		o.AutoFlushBytes = n
		return nil
	}
}

// WithAutoFlushInterval sets the wall-clock auto-flush threshold in
// milliseconds, checked only on row completion. ms<=0 disables it.
func WithAutoFlushInterval(ms int) Option {
	return func(o *config.Options) error {
		o.AutoFlushIntervalMS = ms
		return nil
	}
}

// WithInitBufSize sets the buffer's first-chunk size in bytes.
func WithInitBufSize(n int) Option {
	return func(o *config.Options) error {
		if n <= 0 {
			return qerr.New(qerr.ConfigError, "init buf size must be positive")
		}
		o.InitBufSize = n
		return nil
	}
}

// WithMaxBufSize caps how large the buffer may grow in bytes.
func WithMaxBufSize(n int) Option {
	return func(o *config.Options) error {
		o.MaxBufSize = n
		return nil
	}
}

// WithMaxNameLen caps table and column name length in bytes.
func WithMaxNameLen(n int) Option {
	return func(o *config.Options) error {
		if n <= 0 {
			return qerr.New(qerr.ConfigError, "max name len must be positive")
		}
		o.MaxNameLen = n
		return nil
	}
}

// WithBasicAuth sets HTTP basic-auth credentials.
func WithBasicAuth(username, password string) Option {
	return func(o *config.Options) error {
		o.Username = username
		o.Password = password
		return nil
	}
}

// WithBearerToken sets an HTTP bearer token.
func WithBearerToken(token string) Option {
	return func(o *config.Options) error {
		o.Token = token
		return nil
	}
}

// WithTCPAuth sets the username and ECDSA private-key token used for the
// TCP challenge-response handshake.
func WithTCPAuth(username, token string) Option {
	return func(o *config.Options) error {
		o.Username = username
		o.Token = token
		return nil
	}
}

// WithAuthTimeout bounds how long the TCP auth handshake may take, in
// milliseconds.
func WithAuthTimeout(ms int) Option {
	return func(o *config.Options) error {
		if ms <= 0 {
			return qerr.New(qerr.ConfigError, "auth timeout must be positive")
		}
		o.AuthTimeoutMS = ms
		return nil
	}
}

// WithRequestTimeout sets the HTTP request's base timeout in
// milliseconds, before the request_min_throughput scaling term.
func WithRequestTimeout(ms int) Option {
	return func(o *config.Options) error {
		o.RequestTimeoutMS = ms
		return nil
	}
}

// WithRequestMinThroughput sets the assumed bytes/second throughput used
// to scale the per-attempt HTTP timeout with payload size.
func WithRequestMinThroughput(bytesPerSec int) Option {
	return func(o *config.Options) error {
		o.RequestMinThroughput = bytesPerSec
		return nil
	}
}

// WithRetryTimeout bounds the wall-clock time an HTTP flush may spend
// retrying transient failures, in milliseconds.
func WithRetryTimeout(ms int) Option {
	return func(o *config.Options) error {
		o.RetryTimeoutMS = ms
		return nil
	}
}

// WithPoolTimeout sets how long an idle pooled HTTP connection may sit
// before being closed, in milliseconds.
func WithPoolTimeout(ms int) Option {
	return func(o *config.Options) error {
		o.PoolTimeoutMS = ms
		return nil
	}
}

// WithTLSInsecureSkipVerify disables server-certificate verification on
// https/tcps connections. Equivalent to tls_verify=unsafe_off; use only
// against a server you otherwise trust (e.g. in integration tests).
func WithTLSInsecureSkipVerify() Option {
	return func(o *config.Options) error {
		o.TLSVerify = config.TLSVerifyUnsafeOff
		return nil
	}
}

// WithTLSRoots sets a PEM bundle of trusted CA certificates to validate
// the server certificate against, instead of the system root pool.
func WithTLSRoots(path string) Option {
	return func(o *config.Options) error {
		o.TLSRoots = path
		return nil
	}
}
