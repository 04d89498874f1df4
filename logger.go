package qsock

import (
	"fmt"

	"github.com/zhiqiangxu/util/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// l is used by the server and binder only, Listener and Conn never log.
var l *zap.Logger

// Logger returns the logger for qsock
func Logger() *zap.Logger {
	return l
}

// SetLogger replaces the logger,
// should only be called before any Server is started
func SetLogger(zl *zap.Logger) {
	l = zl
}

func init() {
	config := zap.Config{
		DisableCaller:     true,
		DisableStacktrace: true,
		Level:             zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:          "json",
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var err error
	l, err = logger.New(config)
	if err != nil {
		panic(fmt.Sprintf("qsock.logger.New:%v", err))
	}
}

func kindField(k Kind) zap.Field {
	return zap.Stringer("kind", k)
}
