// Package rowlog sets up row's process-wide structured logger: a
// zap.Logger writing human-readable console output to stderr by default,
// or JSON lines to a rotated file when --log-file is set.
package rowlog

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger every internal/cmd command logs
// through, in the same call-site convention as observability.CLILogger:
// rowlog.Logger.Info("message", zap.String("key", value)).
var Logger *zap.Logger = zap.NewNop()

// Init builds Logger from level and, if logFile is non-empty, routes
// output to a lumberjack-rotated file as JSON lines instead of stderr
// console output. Init is safe to call more than once; the last call wins.
func Init(level string, logFile string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var core zapcore.Core
	if logFile != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
		encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core = zapcore.NewCore(encoder, writer, zapLevel)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stderr), zapLevel)
	}

	Logger = zap.New(core)
	return nil
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() error {
	return Logger.Sync()
}
