// Package logger wraps zap with a process-wide instance configured once at startup.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogFile   string // empty means stdout only
	LogLevel  string
	AppName   string
	AddCaller bool
}

// Logger embeds *zap.Logger so services can depend on a concrete project type.
type Logger struct {
	*zap.Logger
}

var (
	mu     sync.RWMutex
	global = &Logger{Logger: zap.NewNop()}
)

// Init builds the global logger. It is safe to call more than once; the last call wins.
func Init(cfg Config) error {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.NewMultiWriteSyncer(sinks...), level)

	opts := []zap.Option{}
	if cfg.AddCaller {
		opts = append(opts, zap.AddCaller())
	}

	z := zap.New(core, opts...)
	if cfg.AppName != "" {
		z = z.With(zap.String("app", cfg.AppName))
	}

	Set(z)
	return nil
}

// Set replaces the global logger. Tests use it with an observer core.
func Set(z *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = &Logger{Logger: z}
}

func Get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func Sync() {
	_ = Get().Logger.Sync()
}
