package geobase

// Logger is the logging surface shared by the connector, the store and the
// domain services. Fields alternate key and value.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NoOpLogger discards every entry
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

func loggerOrNoOp(l Logger) Logger {
	if l == nil {
		return &NoOpLogger{}
	}
	return l
}

// WithFields returns a logger that attaches fields to every entry it writes.
// A ZapLogger hands back a native zap child; other loggers are wrapped.
func WithFields(l Logger, fields ...interface{}) Logger {
	l = loggerOrNoOp(l)
	if len(fields) == 0 {
		return l
	}
	switch base := l.(type) {
	case *NoOpLogger:
		return base
	case *ZapLogger:
		return base.With(fields...)
	case *scopedLogger:
		return &scopedLogger{base: base.base, fields: base.merge(fields)}
	}
	return &scopedLogger{base: l, fields: fields}
}

type scopedLogger struct {
	base   Logger
	fields []interface{}
}

func (s *scopedLogger) merge(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(s.fields)+len(fields))
	out = append(out, s.fields...)
	return append(out, fields...)
}

func (s *scopedLogger) Debug(msg string, fields ...interface{}) { s.base.Debug(msg, s.merge(fields)...) }
func (s *scopedLogger) Info(msg string, fields ...interface{})  { s.base.Info(msg, s.merge(fields)...) }
func (s *scopedLogger) Warn(msg string, fields ...interface{})  { s.base.Warn(msg, s.merge(fields)...) }
func (s *scopedLogger) Error(msg string, fields ...interface{}) { s.base.Error(msg, s.merge(fields)...) }
