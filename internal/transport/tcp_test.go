package transport

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lineflux/qdbsender/internal/config"
)

func TestTCPFlushWritesBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		line, _ := bufio.NewReader(conn).ReadString('\n')
		received <- line
	}()

	o, err := config.Parse("tcp::addr=" + ln.Addr().String() + ";")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := NewTCP(ctx, o)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Flush(context.Background(), &fakeBuffer{data: []byte("t f=1i 1\n")})
	require.NoError(t, err)

	select {
	case line := <-received:
		assert.Equal(t, "t f=1i 1\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive line")
	}
}

func TestTCPConnectionRefusedClassified(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	o, err := config.Parse("tcp::addr=" + addr + ";")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewTCP(ctx, o)
	require.Error(t, err)
}

func TestTCPAuthenticatesWithUsernameAndToken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	priv := base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		if _, err := reader.ReadString('\n'); err != nil {
			done <- err
			return
		}
		if _, err := conn.Write([]byte("challenge-bytes\n")); err != nil {
			done <- err
			return
		}
		if _, err := reader.ReadString('\n'); err != nil {
			done <- err
			return
		}
		done <- nil
	}()

	o, err := config.Parse("tcp::addr=" + ln.Addr().String() + ";username=testUser1;token=" + priv + ";")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := NewTCP(ctx, o)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, <-done)
}
