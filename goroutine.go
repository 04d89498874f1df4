package qsock

import (
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// GoFunc runs f in a goroutine tracked by wg.
// A panic in f is logged with its stack and swallowed.
func GoFunc(wg *sync.WaitGroup, f func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				l.Error("GoFunc panic", zap.Any("err", err), zap.ByteString("stack", buf))
			}
		}()
		f()
	}()
}
