package qsock

import (
	"context"
	"net"
	"time"
)

// Writer writes all of its input to a Conn, retrying short writes
type Writer struct {
	ctx     context.Context
	conn    *Conn
	timeout int
}

const (
	// WriteNoTimeout will never timeout
	WriteNoTimeout = -1
	// CtxCheckMaxInterval for check ctx.Done
	CtxCheckMaxInterval = 3 * time.Second
)

// NewWriter new instance
func NewWriter(ctx context.Context, conn *Conn) *Writer {
	return &Writer{ctx: ctx, conn: conn, timeout: WriteNoTimeout}
}

// NewWriterWithTimeout new instance with timeout in seconds
func NewWriterWithTimeout(ctx context.Context, conn *Conn, timeout int) *Writer {
	return &Writer{ctx: ctx, conn: conn, timeout: timeout}
}

// Write writes bytes
func (w *Writer) Write(bytes []byte) (int, error) {
	var (
		offset int
		n      int
		err    error
	)

	endTime := w.endTime()
	size := len(bytes)

	for {
		w.conn.SetWriteDeadline(time.Now().Add(w.nextTimeout(endTime)))

		n, err = w.conn.Write(bytes[offset:])
		offset += n
		if err != nil && !w.retryable(err, endTime) {
			return offset, err
		}
		if offset >= size {
			return offset, nil
		}

		select {
		case <-w.ctx.Done():
			return offset, w.ctx.Err()
		default:
		}
	}
}

// WriteBuffers writes every buffer in order, using the vectored path of the Conn
func (w *Writer) WriteBuffers(buffs [][]byte) (int64, error) {
	var (
		offset int64
		n      int64
		err    error
		size   int64
	)

	endTime := w.endTime()
	for _, bytes := range buffs {
		size += int64(len(bytes))
	}

	remaining := buffs
	for {
		w.conn.SetWriteDeadline(time.Now().Add(w.nextTimeout(endTime)))

		n, err = w.conn.WriteBuffers(remaining)
		offset += n
		remaining = consumeBuffers(remaining, n)
		if err != nil && !w.retryable(err, endTime) {
			return offset, err
		}
		if offset >= size {
			return offset, nil
		}

		select {
		case <-w.ctx.Done():
			return offset, w.ctx.Err()
		default:
		}
	}
}

// Flush the underlying Conn
func (w *Writer) Flush() error {
	return w.conn.Flush()
}

func (w *Writer) endTime() (endTime time.Time) {
	if w.timeout > 0 {
		endTime = time.Now().Add(time.Duration(w.timeout) * time.Second)
	}
	return
}

func (w *Writer) nextTimeout(endTime time.Time) time.Duration {
	if w.timeout > 0 {
		if writeTimeout := time.Until(endTime); writeTimeout < CtxCheckMaxInterval {
			return writeTimeout
		}
	}
	return CtxCheckMaxInterval
}

// a deadline hit before endTime only means it's time to look at ctx again
func (w *Writer) retryable(err error, endTime time.Time) bool {
	ne, ok := err.(net.Error)
	if !ok || !ne.Timeout() {
		return false
	}
	return w.timeout <= 0 || time.Now().Before(endTime)
}

// consumeBuffers drops the first n bytes without touching the caller's slices
func consumeBuffers(buffs [][]byte, n int64) [][]byte {
	for len(buffs) > 0 && n >= int64(len(buffs[0])) {
		n -= int64(len(buffs[0]))
		buffs = buffs[1:]
	}
	if len(buffs) == 0 || n == 0 {
		return buffs
	}

	out := make([][]byte, len(buffs))
	copy(out, buffs)
	out[0] = out[0][n:]
	return out
}
