package logger

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON log lines tagged with the service name and host
type Logger struct {
	service  string
	hostname string
	zl       *zap.Logger
}

// New creates a logger for the given service writing JSON to stdout
func New(service string) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return NewWithCore(service, core)
}

// NewWithCore creates a logger on top of an existing zap core
func NewWithCore(service string, core zapcore.Core) *Logger {
	hostname, _ := os.Hostname()

	zl := zap.New(core).With(
		zap.String("service", service),
		zap.String("hostname", hostname),
	)

	return &Logger{
		service:  service,
		hostname: hostname,
		zl:       zl,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zap.NewNop()}
}

// GenerateRequestID returns a fresh request id
func GenerateRequestID() string {
	return uuid.NewString()
}

// Info logs an informational event
func (l *Logger) Info(action, message, requestID string, fields map[string]interface{}) {
	l.zl.Info(message, l.attrs(action, requestID, fields)...)
}

// Debug logs a debug event
func (l *Logger) Debug(action, message, requestID string, fields map[string]interface{}) {
	l.zl.Debug(message, l.attrs(action, requestID, fields)...)
}

// Error logs a failure; err may be nil for validation style errors
func (l *Logger) Error(action, message, requestID string, err error, fields map[string]interface{}) {
	attrs := l.attrs(action, requestID, fields)
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	l.zl.Error(message, attrs...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) attrs(action, requestID string, fields map[string]interface{}) []zap.Field {
	attrs := make([]zap.Field, 0, len(fields)+2)
	attrs = append(attrs, zap.String("action", action))
	if requestID != "" {
		attrs = append(attrs, zap.String("request_id", requestID))
	}
	for k, v := range fields {
		attrs = append(attrs, zap.Any(k, v))
	}
	return attrs
}
