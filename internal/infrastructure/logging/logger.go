package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger. The server, playctl and every preview component
// share one root and derive tagged children from it.
type Logger struct {
	*zap.Logger
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"; empty means info
	Development bool   // Console encoding with colored levels
	Output      string // "stdout", "stderr" or a file path
}

// DefaultConfig returns the server configuration: JSON lines on stdout.
func DefaultConfig() Config {
	return Config{Level: "info", Output: "stdout"}
}

// New builds a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := productionConfig()
	if cfg.Development {
		zc = developmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Output != "" {
		zc.OutputPaths = []string{cfg.Output}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// NewFromLevel builds a stdout logger for level. An empty level means debug
// in development and info otherwise; an unknown one falls back the same way.
func NewFromLevel(level string, development bool) *Logger {
	fallback := "info"
	if development {
		fallback = "debug"
	}
	if level == "" {
		level = fallback
	}
	cfg := Config{Level: level, Development: development, Output: "stdout"}
	if logger, err := New(cfg); err == nil {
		return logger
	}
	cfg.Level = fallback
	logger, err := New(cfg)
	if err != nil {
		return NewNop()
	}
	return logger
}

// NewCLI builds the playctl logger. Diagnostics go to stderr so stdout
// carries only command output.
func NewCLI(level string) *Logger {
	logger, err := New(Config{Level: level, Development: true, Output: "stderr"})
	if err != nil {
		logger, _ = New(Config{Level: "error", Development: true, Output: "stderr"})
	}
	if logger == nil {
		return NewNop()
	}
	return logger
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	if l == nil || l.Logger == nil {
		return NewNop()
	}
	return &Logger{Logger: l.Logger.With(zap.String("component", name))}
}

func productionConfig() zap.Config {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	return zap.Config{
		Encoding:          "json",
		EncoderConfig:     enc,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
}

func developmentConfig() zap.Config {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	return zap.Config{
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    enc,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}
