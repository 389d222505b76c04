package tap

import "go.uber.org/zap"

// LogSink writes diagnostics to a zap logger at warn level.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("tap")}
}

// Record implements Sink.Record
func (s *LogSink) Record(d Diagnostic) {
	fields := []zap.Field{
		zap.String("kind", string(d.Kind)),
		zap.String("connection_id", d.ConnectionID),
	}
	if d.SessionID != "" {
		fields = append(fields, zap.String("session_id", d.SessionID))
	}
	if d.Method != "" {
		fields = append(fields, zap.String("method", d.Method))
	}
	if d.RequestID != 0 {
		fields = append(fields, zap.Int64("request_id", d.RequestID))
	}
	if d.Err != "" {
		fields = append(fields, zap.String("error", d.Err))
	}
	if d.Payload != "" {
		fields = append(fields, zap.String("payload", d.Payload))
	}
	s.logger.Warn("unroutable inbound message", fields...)
}
