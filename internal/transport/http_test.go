package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineflux/qdbsender/internal/config"
)

type fakeBuffer struct{ data []byte }

func (f *fakeBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.data)
	return int64(n), err
}
func (f *fakeBuffer) Len() int { return len(f.data) }

func testOptions(t *testing.T, addr string) *config.Options {
	t.Helper()
	o, err := config.Parse("http::addr=" + addr + ";retry_timeout=200;")
	require.NoError(t, err)
	return o
}

func TestHTTPFlushSuccess(t *testing.T) {
	var gotBody []byte
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.Equal(t, "/write", gotPath)
	assert.Equal(t, "t f=1i\n", string(gotBody))
}

func TestHTTPFlushUsesServerDateHeader(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		w.Header().Set("Date", want.Format(http.TimeFormat))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	got, err := h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "got %v, want %v", got, want)
}

func TestHTTPFlushMissingDateHeaderYieldsZeroTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		w.Header()["Date"] = nil // a nil value suppresses net/http's automatic Date header
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	got, err := h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestHTTPFlushRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestHTTPFlushFatalStatusDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"invalid","message":"bad line","line":2,"errorId":"abc"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad line")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPFlushExhaustsRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o, err := config.Parse("http::addr=" + srv.Listener.Addr().String() + ";retry_timeout=50;")
	require.NoError(t, err)
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	start := time.Now()
	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPFlushSendsBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o, err := config.Parse("http::addr=" + srv.Listener.Addr().String() + ";username=bob;password=secret;")
	require.NoError(t, err)
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.True(t, gotOK)
	assert.Equal(t, "bob", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestHTTPFlushSendsBearerAuth(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o, err := config.Parse("http::addr=" + srv.Listener.Addr().String() + ";token=abc123;")
	require.NoError(t, err)
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i\n")})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", gotHeader)
}

func TestHTTPFlushContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Flush(ctx, &fakeBuffer{data: []byte("t f=1i\n")})
	require.Error(t, err)
}

// TestHTTPFlushStreamsLargeBufferWithoutContiguousCopy exercises a payload
// large enough that buffering it whole would be wasteful, and checks the
// full content still arrives intact via the pipe-streamed body — the
// transport never builds a bytes.Buffer copy of it (see bufReader in
// http.go).
func TestHTTPFlushStreamsLargeBufferWithoutContiguousCopy(t *testing.T) {
	line := "t f=1i 1\n"
	payload := make([]byte, 0, len(line)*10000)
	for i := 0; i < 10000; i++ {
		payload = append(payload, line...)
	}

	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		gotLen = int(n)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	o := testOptions(t, srv.Listener.Addr().String())
	h, err := NewHTTP(o)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Flush(context.Background(), &fakeBuffer{data: payload})
	require.NoError(t, err)
	assert.Equal(t, len(payload), gotLen)
}
