package qsock

import (
	"io"
	"time"
)

// Reader reads from a Conn with an optional per-call timeout
type Reader struct {
	conn    *Conn
	timeout int
}

const (
	// ReadNoTimeout will never timeout
	ReadNoTimeout = -1
)

// NewReader creates a Reader instance
func NewReader(conn *Conn) *Reader {
	return NewReaderWithTimeout(conn, ReadNoTimeout)
}

// NewReaderWithTimeout allows specify timeout in seconds
func NewReaderWithTimeout(conn *Conn, timeout int) *Reader {
	return &Reader{conn: conn, timeout: timeout}
}

// SetReadTimeout allows modify timeout for read
func (r *Reader) SetReadTimeout(timeout int) {
	r.timeout = timeout
}

// Read returns whatever is available, waiting at most the timeout
func (r *Reader) Read(bytes []byte) (int, error) {
	r.setDeadline()
	return r.conn.Read(bytes)
}

// ReadBytes fills bytes completely, the timeout covers the whole call
func (r *Reader) ReadBytes(bytes []byte) error {
	r.setDeadline()
	_, err := io.ReadFull(r.conn, bytes)
	return err
}

func (r *Reader) setDeadline() {
	if r.timeout > 0 {
		r.conn.SetReadDeadline(time.Now().Add(time.Duration(r.timeout) * time.Second))
	}
}
