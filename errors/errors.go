// Package errors defines the tagged error kind returned by every public
// operation of the sender. It is a regular (non-internal) package
// specifically so callers of the published module can import it and write
// `var ie *errors.IngressError; errors.As(err, &ie)` themselves.
package errors

import "fmt"

// Code identifies the kind of failure that occurred. A Code is always
// paired with a human-readable Message and, where one exists, the
// underlying Cause.
type Code int

const (
	// CouldNotResolveAddr means the configured host could not be resolved
	// to a network address.
	CouldNotResolveAddr Code = iota
	// InvalidApiCall means the caller used the fluent builder out of
	// order, overflowed a limit, or committed outside a transaction.
	InvalidApiCall
	// SocketError means a read or write against the network connection
	// failed.
	SocketError
	// InvalidUtf8 means a name or value was not valid UTF-8.
	InvalidUtf8
	// InvalidName means a table or column name failed the naming rules.
	InvalidName
	// InvalidTimestamp means a timestamp value could not be represented.
	InvalidTimestamp
	// AuthError means the TCP challenge-response handshake failed.
	AuthError
	// TlsError means the TLS handshake failed or the stream was not
	// encrypted when encryption was required.
	TlsError
	// HttpNotSupported means an HTTP-only operation was invoked on a TCP
	// sender, or vice versa.
	HttpNotSupported
	// ServerFlushError means the server rejected a flush, or the retry
	// budget was exhausted before a non-retriable outcome was reached.
	ServerFlushError
	// ConfigError means the configuration string was malformed or
	// contained an unknown or invalid key.
	ConfigError
	// ProtocolVersionError means the server does not support the line
	// protocol variant this client speaks.
	ProtocolVersionError
)

// String renders the Code the way it appears in error messages.
func (c Code) String() string {
	switch c {
	case CouldNotResolveAddr:
		return "CouldNotResolveAddr"
	case InvalidApiCall:
		return "InvalidApiCall"
	case SocketError:
		return "SocketError"
	case InvalidUtf8:
		return "InvalidUtf8"
	case InvalidName:
		return "InvalidName"
	case InvalidTimestamp:
		return "InvalidTimestamp"
	case AuthError:
		return "AuthError"
	case TlsError:
		return "TlsError"
	case HttpNotSupported:
		return "HttpNotSupported"
	case ServerFlushError:
		return "ServerFlushError"
	case ConfigError:
		return "ConfigError"
	case ProtocolVersionError:
		return "ProtocolVersionError"
	default:
		return "Unknown"
	}
}

// IngressError is the single error type returned by every public operation.
// It always carries a machine-readable Code and a human-readable Message,
// and preserves the underlying Cause when one wraps a lower-layer error.
type IngressError struct {
	Code    Code
	Message string
	Cause   error
}

// New builds an IngressError with no wrapped cause.
func New(code Code, message string) *IngressError {
	return &IngressError{Code: code, Message: message}
}

// Newf builds an IngressError with a formatted message and no wrapped cause.
func Newf(code Code, format string, args ...interface{}) *IngressError {
	return &IngressError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an IngressError that preserves cause as its Unwrap target.
func Wrap(code Code, message string, cause error) *IngressError {
	return &IngressError{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *IngressError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is/errors.As against it.
func (e *IngressError) Unwrap() error {
	return e.Cause
}
