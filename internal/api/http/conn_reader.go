package apihttp

import (
	"errors"
	"net"
	"net/http"
)

// maxHeaderBytes caps a request line plus headers. The slack covers what
// the bufio reader may already hold when a new request begins.
const (
	maxHeaderBytes  = http.DefaultMaxHeaderBytes
	headerReadLimit = maxHeaderBytes + 4096
)

var errHeaderTooLarge = errors.New("request header too large")

// connReader sits between a session's connection and its bufio.Reader.
// While limited it hands out at most remaining bytes, and every read that
// makes progress calls touch so the idle deadline follows the traffic.
type connReader struct {
	conn      net.Conn
	limited   bool
	remaining int64
	touch     func()
}

func (r *connReader) Read(p []byte) (int, error) {
	if r.limited {
		if r.remaining <= 0 {
			return 0, errHeaderTooLarge
		}
		if int64(len(p)) > r.remaining {
			p = p[:r.remaining]
		}
	}
	n, err := r.conn.Read(p)
	if r.limited {
		r.remaining -= int64(n)
	}
	if n > 0 && r.touch != nil {
		r.touch()
	}
	return n, err
}

func (r *connReader) limit(n int64) {
	r.limited = true
	r.remaining = n
}

func (r *connReader) unlimit() {
	r.limited = false
}
