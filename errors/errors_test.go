package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngressErrorMessageWithoutCause(t *testing.T) {
	err := New(InvalidName, "table name is empty")
	assert.Equal(t, "InvalidName: table name is empty", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestIngressErrorMessageWithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ServerFlushError, "flush failed", cause)
	assert.Contains(t, err.Error(), "ServerFlushError")
	assert.Contains(t, err.Error(), "flush failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestIngressErrorNewfFormats(t *testing.T) {
	err := Newf(InvalidApiCall, "buffer would grow to %d bytes, exceeding max_buf_size of %d", 200, 100)
	assert.Equal(t, "InvalidApiCall: buffer would grow to 200 bytes, exceeding max_buf_size of 100", err.Error())
}

func TestCodeStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Code(999).String())
}
