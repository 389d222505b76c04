package tap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/config"
)

// New builds the sinks named in cfg.
func New(ctx context.Context, logger *zap.Logger, cfg *config.TapConfig) (*Composite, error) {
	logger.Info("Initializing diagnostic sinks", zap.Strings("sinks", cfg.Sinks))

	var sinks []Sink
	for _, name := range cfg.Sinks {
		switch strings.ToLower(name) {
		case config.SinkLog:
			sinks = append(sinks, NewLogSink(logger))
		case config.SinkMemory:
			sinks = append(sinks, NewMemorySink(cfg.MemorySize))
		case config.SinkRedis:
			rs, err := NewRedisSink(ctx, logger, cfg.Redis)
			if err != nil {
				_ = NewComposite(sinks...).Close()
				return nil, err
			}
			sinks = append(sinks, rs)
		default:
			_ = NewComposite(sinks...).Close()
			return nil, fmt.Errorf("unsupported diagnostic sink: %s", name)
		}
	}
	return NewComposite(sinks...), nil
}
