package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/common/config"
	"github.com/amoylab/janus/pkg/utils"
)

// RedisSink publishes diagnostics as JSON to a Redis pub/sub topic. Records
// are queued and published by a background goroutine; when the queue is full
// the record is dropped.
type RedisSink struct {
	logger *zap.Logger
	client redis.UniversalClient
	topic  string

	queue   chan Diagnostic
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

// NewRedisSink connects to Redis and starts the publisher.
func NewRedisSink(ctx context.Context, logger *zap.Logger, cfg config.TapRedisConfig) (*RedisSink, error) {
	opts := &redis.UniversalOptions{
		Addrs:    utils.SplitByMultipleDelimiters(cfg.Addr, ";", ","),
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	size := cfg.QueueSize
	if size < 1 {
		size = 256
	}
	s := &RedisSink{
		logger: logger.Named("tap.redis"),
		client: client,
		topic:  cfg.Topic,
		queue:  make(chan Diagnostic, size),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.publishLoop()
	return s, nil
}

// Record implements Sink.Record
func (s *RedisSink) Record(d Diagnostic) {
	select {
	case <-s.done:
		s.dropped.Add(1)
		return
	default:
	}
	select {
	case s.queue <- d:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many records were discarded.
func (s *RedisSink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *RedisSink) publishLoop() {
	defer s.wg.Done()
	for {
		select {
		case d := <-s.queue:
			s.publish(d)
		case <-s.done:
			// flush what was queued before Close
			for {
				select {
				case d := <-s.queue:
					s.publish(d)
				default:
					return
				}
			}
		}
	}
}

func (s *RedisSink) publish(d Diagnostic) {
	payload, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("failed to marshal diagnostic", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.client.Publish(ctx, s.topic, payload).Err(); err != nil {
		s.dropped.Add(1)
		s.logger.Warn("failed to publish diagnostic",
			zap.String("topic", s.topic),
			zap.Error(err))
	}
}

// Close flushes queued records and closes the Redis client.
func (s *RedisSink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.client.Close()
	})
	return err
}
