package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. With an empty logFile everything goes to
// stderr; otherwise output is duplicated into a size-rotated file.
// The returned func flushes buffered entries.
func New(logFile string) (*zap.SugaredLogger, func() error) {
	if logFile == "" {
		l, _ := zap.NewDevelopment()
		return l.Sugar(), l.Sync
	}

	rotated := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	})

	encCfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), rotated, zapcore.InfoLevel),
	)

	l := zap.New(core)
	return l.Sugar(), l.Sync
}
