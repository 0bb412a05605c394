package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScheme(t *testing.T) {
	cases := map[string]Scheme{
		"http":  SchemeHTTP,
		"https": SchemeHTTPS,
		"tcp":   SchemeTCP,
		"tcps":  SchemeTCPS,
	}
	for raw, want := range cases {
		got, ok := ParseScheme(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	_, ok := ParseScheme("ftp")
	assert.False(t, ok)
}

func TestDefaultPorts(t *testing.T) {
	assert.Equal(t, 9000, SchemeHTTP.DefaultPort())
	assert.Equal(t, 9000, SchemeHTTPS.DefaultPort())
	assert.Equal(t, 9009, SchemeTCP.DefaultPort())
	assert.Equal(t, 9009, SchemeTCPS.DefaultPort())
}

func TestIsHTTPAndIsTLS(t *testing.T) {
	assert.True(t, SchemeHTTP.IsHTTP())
	assert.True(t, SchemeHTTPS.IsHTTP())
	assert.False(t, SchemeTCP.IsHTTP())

	assert.True(t, SchemeHTTPS.IsTLS())
	assert.True(t, SchemeTCPS.IsTLS())
	assert.False(t, SchemeHTTP.IsTLS())
	assert.False(t, SchemeTCP.IsTLS())
}

func TestRetriableStatuses(t *testing.T) {
	for _, s := range []int{500, 503, 504, 507, 509, 523, 524, 529, 599} {
		assert.True(t, IsRetriableStatus(s), s)
	}
	for _, s := range []int{200, 204, 400, 401, 403, 404, 409, 502} {
		assert.False(t, IsRetriableStatus(s), s)
	}
}

func TestIntMin(t *testing.T) {
	assert.Equal(t, int64(-9223372036854775808), IntMin)
}
