// Package config parses the `<scheme>::k=v;k=v;…;` configuration string
// into an immutable, validated Options value and applies the
// protocol-dependent defaults from which every other component reads.
package config

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	qerr "github.com/lineflux/qdbsender/errors"
	"github.com/lineflux/qdbsender/internal/protocol"
)

// TLSVerify selects the server-certificate validation policy for TLS
// schemes.
type TLSVerify int

const (
	TLSVerifyOn TLSVerify = iota
	TLSVerifyUnsafeOff
)

// Options is the immutable, validated result of parsing a configuration
// string (or of applying a set of functional Options, see the root
// package). Every other component treats Options as its single source of
// truth.
type Options struct {
	Scheme protocol.Scheme

	host string
	port int

	AutoFlush           bool
	AutoFlushRows       int
	AutoFlushBytes      int
	AutoFlushIntervalMS int

	InitBufSize int
	MaxBufSize  int
	MaxNameLen  int

	Username string
	Password string
	Token    string

	AuthTimeoutMS int

	RequestTimeoutMS     int
	RequestMinThroughput int
	RetryTimeoutMS       int
	PoolTimeoutMS        int

	TLSVerify        TLSVerify
	TLSRoots         string
	TLSRootsPassword string
}

// Host returns the resolved host, after defaults were applied.
func (o *Options) Host() string { return o.host }

// Port returns the resolved port, after the scheme's default was applied.
func (o *Options) Port() int { return o.port }

// Addr returns "host:port" suitable for net.Dial or an http.Request URL.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.host, strconv.Itoa(o.port))
}

// HasBasicAuth reports whether username/password were both supplied.
func (o *Options) HasBasicAuth() bool {
	return o.Username != "" && o.Password != ""
}

// HasBearerAuth reports whether a bearer token was supplied (and basic auth
// was not — §4.4 prefers Basic over Bearer when both are present).
func (o *Options) HasBearerAuth() bool {
	return o.Token != "" && !o.HasBasicAuth()
}

// Protocol returns the scheme as it appears in a configuration string
// ("http", "https", "tcp", or "tcps").
func (o *Options) Protocol() string {
	return o.Scheme.String()
}

// String renders Options back into configuration-string form, with
// password, token, and tls_roots_password redacted so logging an Options
// value never leaks a credential.
func (o *Options) String() string {
	redact := func(v string) string {
		if v == "" {
			return ""
		}
		return "***"
	}
	return fmt.Sprintf(
		"%s::addr=%s;auto_flush=%s;auto_flush_rows=%d;auto_flush_bytes=%d;auto_flush_interval=%d;"+
			"init_buf_size=%d;max_buf_size=%d;max_name_len=%d;username=%s;password=%s;token=%s;"+
			"auth_timeout=%d;request_timeout=%d;request_min_throughput=%d;retry_timeout=%d;pool_timeout=%d;"+
			"tls_verify=%s;tls_roots=%s;tls_roots_password=%s;",
		o.Protocol(), o.Addr(), onOff(o.AutoFlush), o.AutoFlushRows, o.AutoFlushBytes, o.AutoFlushIntervalMS,
		o.InitBufSize, o.MaxBufSize, o.MaxNameLen, o.Username, redact(o.Password), redact(o.Token),
		o.AuthTimeoutMS, o.RequestTimeoutMS, o.RequestMinThroughput, o.RetryTimeoutMS, o.PoolTimeoutMS,
		tlsVerifyString(o.TLSVerify), o.TLSRoots, redact(o.TLSRootsPassword),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func tlsVerifyString(v TLSVerify) string {
	if v == TLSVerifyUnsafeOff {
		return "unsafe_off"
	}
	return "on"
}

// recognized keys, matched case-sensitively against the whitelist.
const (
	keyAddr                  = "addr"
	keyAutoFlush             = "auto_flush"
	keyAutoFlushRows         = "auto_flush_rows"
	keyAutoFlushBytes        = "auto_flush_bytes"
	keyAutoFlushInterval     = "auto_flush_interval"
	keyInitBufSize           = "init_buf_size"
	keyMaxBufSize            = "max_buf_size"
	keyMaxNameLen            = "max_name_len"
	keyUsername              = "username"
	keyPassword              = "password"
	keyToken                 = "token"
	keyAuthTimeout           = "auth_timeout"
	keyRequestTimeout        = "request_timeout"
	keyRequestMinThroughput  = "request_min_throughput"
	keyRetryTimeout          = "retry_timeout"
	keyPoolTimeout           = "pool_timeout"
	keyTLSVerify             = "tls_verify"
	keyTLSRoots              = "tls_roots"
	keyTLSRootsPassword      = "tls_roots_password"
)

var recognizedKeys = map[string]bool{
	keyAddr: true, keyAutoFlush: true, keyAutoFlushRows: true,
	keyAutoFlushBytes: true, keyAutoFlushInterval: true, keyInitBufSize: true,
	keyMaxBufSize: true, keyMaxNameLen: true, keyUsername: true,
	keyPassword: true, keyToken: true, keyAuthTimeout: true,
	keyRequestTimeout: true, keyRequestMinThroughput: true,
	keyRetryTimeout: true, keyPoolTimeout: true, keyTLSVerify: true,
	keyTLSRoots: true, keyTLSRootsPassword: true,
}

// Parse parses a configuration string of the form
// "<scheme>::key1=value1;key2=value2;…;" into a validated Options value.
func Parse(conf string) (*Options, error) {
	schemeRaw, rest, ok := strings.Cut(conf, "::")
	if !ok {
		return nil, qerr.New(qerr.ConfigError, "configuration string must contain '::' separating the scheme from key/value pairs")
	}

	scheme, ok := protocol.ParseScheme(schemeRaw)
	if !ok {
		return nil, qerr.Newf(qerr.ConfigError, "unsupported scheme %q: expected one of http, https, tcp, tcps", schemeRaw)
	}

	if rest == "" || !strings.HasSuffix(rest, ";") {
		return nil, qerr.New(qerr.ConfigError, "configuration string's key/value section must end in ';'")
	}

	pairs, err := splitPairs(rest)
	if err != nil {
		return nil, err
	}

	o := defaults(scheme)
	o.Scheme = scheme

	for _, kv := range pairs {
		if err := apply(o, kv.key, kv.value); err != nil {
			return nil, err
		}
	}

	if err := resolveAddr(o); err != nil {
		return nil, err
	}

	if err := validate(o); err != nil {
		return nil, err
	}

	return o, nil
}

// New builds a validated Options for scheme and addr directly, without a
// configuration string, for callers that prefer the functional-options
// constructor (see the root package's FromOptions).
func New(scheme protocol.Scheme, addr string) (*Options, error) {
	o := defaults(scheme)
	o.Scheme = scheme
	o.host, o.port = splitAddr(addr)

	if err := resolveAddr(o); err != nil {
		return nil, err
	}
	if err := validate(o); err != nil {
		return nil, err
	}
	return o, nil
}

type kv struct{ key, value string }

// splitPairs splits the ';'-terminated key/value section into individual
// key=value entries, rejecting anything that isn't on the whitelist.
func splitPairs(rest string) ([]kv, error) {
	// rest always ends in ';' (checked by the caller); drop the trailing
	// separator before splitting so we don't produce a spurious empty
	// trailing entry.
	trimmed := strings.TrimSuffix(rest, ";")
	if trimmed == "" {
		return nil, nil
	}

	entries := strings.Split(trimmed, ";")
	pairs := make([]kv, 0, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, qerr.Newf(qerr.ConfigError, "malformed key/value entry %q: expected key=value", entry)
		}
		if !recognizedKeys[key] {
			return nil, qerr.Newf(qerr.ConfigError, "unknown configuration key %q", key)
		}
		pairs = append(pairs, kv{key: key, value: value})
	}
	return pairs, nil
}

// defaults returns the scheme-dependent default Options, before any
// key/value pair from the configuration string has been applied.
func defaults(scheme protocol.Scheme) *Options {
	autoFlushRows := 75000
	if !scheme.IsHTTP() {
		autoFlushRows = 600
	}
	return &Options{
		Scheme:               scheme,
		host:                 "localhost",
		port:                 scheme.DefaultPort(),
		AutoFlush:            true,
		AutoFlushRows:        autoFlushRows,
		AutoFlushBytes:       math.MaxInt,
		AutoFlushIntervalMS:  1000,
		InitBufSize:          65536,
		MaxBufSize:           104857600,
		MaxNameLen:           127,
		AuthTimeoutMS:        15000,
		RequestTimeoutMS:     10000,
		RequestMinThroughput: 102400,
		RetryTimeoutMS:       10000,
		PoolTimeoutMS:        120000,
		TLSVerify:            TLSVerifyOn,
	}
}

// apply parses and assigns a single recognized key/value pair.
func apply(o *Options, key, value string) error {
	switch key {
	case keyAddr:
		o.host, o.port = splitAddr(value)
	case keyAutoFlush:
		on, err := parseOnOff(key, value)
		if err != nil {
			return err
		}
		o.AutoFlush = on
	case keyAutoFlushRows:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.AutoFlushRows = n
	case keyAutoFlushBytes:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.AutoFlushBytes = n
	case keyAutoFlushInterval:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.AutoFlushIntervalMS = n
	case keyInitBufSize:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.InitBufSize = n
	case keyMaxBufSize:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.MaxBufSize = n
	case keyMaxNameLen:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.MaxNameLen = n
	case keyUsername:
		o.Username = value
	case keyPassword:
		o.Password = value
	case keyToken:
		o.Token = value
	case keyAuthTimeout:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.AuthTimeoutMS = n
	case keyRequestTimeout:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.RequestTimeoutMS = n
	case keyRequestMinThroughput:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.RequestMinThroughput = n
	case keyRetryTimeout:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.RetryTimeoutMS = n
	case keyPoolTimeout:
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		o.PoolTimeoutMS = n
	case keyTLSVerify:
		switch value {
		case "on":
			o.TLSVerify = TLSVerifyOn
		case "unsafe_off":
			o.TLSVerify = TLSVerifyUnsafeOff
		default:
			return qerr.Newf(qerr.ConfigError, "tls_verify must be 'on' or 'unsafe_off', got %q", value)
		}
	case keyTLSRoots:
		o.TLSRoots = value
	case keyTLSRootsPassword:
		o.TLSRootsPassword = value
	}
	return nil
}

func parseOnOff(key, value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, qerr.Newf(qerr.ConfigError, "%s must be 'on' or 'off', got %q", key, value)
	}
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, qerr.Newf(qerr.ConfigError, "%s must be an integer, got %q", key, value)
	}
	return n, nil
}

// splitAddr splits "addr" on its last ':', honoring bracketed IPv6
// literals, and returns (host, 0) when no port segment was present so the
// caller applies the scheme's default.
func splitAddr(addr string) (string, int) {
	if addr == "" {
		return "", 0
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port segment present (net.SplitHostPort requires one); treat
		// the whole value as the host and let the caller apply the
		// scheme default.
		return strings.Trim(addr, "[]"), 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// resolveAddr fills in a zero port left by splitAddr/defaults with the
// scheme's default port.
func resolveAddr(o *Options) error {
	if o.host == "" {
		return qerr.New(qerr.ConfigError, "addr must not resolve to an empty host")
	}
	if o.port == 0 {
		o.port = o.Scheme.DefaultPort()
	}
	return nil
}

// validate enforces the cross-field invariants spec.md §3 implies: buffer
// limits must be positive and internally consistent, and a TCP sender
// cannot carry HTTP-only credentials.
func validate(o *Options) error {
	if o.InitBufSize <= 0 {
		return qerr.New(qerr.ConfigError, "init_buf_size must be positive")
	}
	if o.MaxBufSize < o.InitBufSize {
		return qerr.New(qerr.ConfigError, "max_buf_size must be at least init_buf_size")
	}
	if o.MaxNameLen <= 0 {
		return qerr.New(qerr.ConfigError, "max_name_len must be positive")
	}
	if o.AuthTimeoutMS <= 0 {
		return qerr.New(qerr.ConfigError, "auth_timeout must be positive")
	}
	if !o.Scheme.IsHTTP() && o.Password != "" {
		// TCP auth only uses username+token (§4.5); a password is an
		// HTTP-shaped credential on a TCP sender.
		return qerr.New(qerr.ConfigError, "tcp and tcps support username+token authentication, not username+password")
	}
	return nil
}
