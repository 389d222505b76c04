package tap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/common/config"
)

func newTestRedisSink(t *testing.T) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	sink, err := NewRedisSink(context.Background(), zap.NewNop(), config.TapRedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        mr.Addr(),
		Topic:       "janus:diagnostics",
		QueueSize:   16,
	})
	require.NoError(t, err)
	return sink, mr
}

func TestNewRedisSink_ConnectionError(t *testing.T) {
	s, err := NewRedisSink(context.Background(), zap.NewNop(), config.TapRedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        "127.0.0.1:0", // invalid
		Topic:       "x",
	})
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestRedisSink_Publishes(t *testing.T) {
	sink, mr := newTestRedisSink(t)

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(context.Background(), "janus:diagnostics")
	defer ps.Close()
	_, err := ps.Receive(context.Background())
	require.NoError(t, err)

	sink.Record(Diagnostic{Kind: KindOrphanResponse, ConnectionID: "c1", RequestID: 42, At: time.Now()})

	select {
	case msg := <-ps.Channel():
		var got Diagnostic
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, KindOrphanResponse, got.Kind)
		assert.Equal(t, int64(42), got.RequestID)
	case <-time.After(3 * time.Second):
		t.Fatal("diagnostic was not published")
	}

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	sink.Record(Diagnostic{Kind: KindOrphanResponse})
	assert.Equal(t, uint64(1), sink.Dropped())
}

func TestNew_WithRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), zap.NewNop(), &config.TapConfig{
		Sinks:      []string{"memory", "redis"},
		MemorySize: 4,
		Redis: config.TapRedisConfig{
			ClusterType: cnst.RedisClusterTypeSingle,
			Addr:        mr.Addr(),
			Topic:       "t",
			QueueSize:   4,
		},
	})
	require.NoError(t, err)
	c.Record(Diagnostic{Kind: KindMalformedFrame})
	assert.NoError(t, c.Close())
	assert.Equal(t, uint64(1), c.Memory().Total())
}
