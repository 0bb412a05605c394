//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// isConnAlive peeks at fd without consuming data to tell a live connection
// apart from one the peer has already closed, the way a connection pool
// must before handing out a socket it hasn't used in a while. A read of 0
// bytes means the peer sent FIN; a read that would block means the
// connection is live but idle; anything else is a genuine I/O error.
func isConnAlive(fd uintptr) bool {
	buf := make([]byte, 1)
	n, _, err := syscall.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return true
	}
	if err != nil {
		return false
	}
	return n > 0
}
