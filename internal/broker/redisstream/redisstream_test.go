package redisstream

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/reachability/internal/broker"
)

// Integration tests run against a live server only when REDIS_ADDR is set.
func newTestBroker(t *testing.T) (*Broker, string) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis stream tests")
	}
	client := NewClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	prefix := "test-" + uuid.NewString()
	b := New(client, Options{Prefix: prefix, MaxLen: 1000, Block: 100 * time.Millisecond}, nil)
	t.Cleanup(func() {
		ctx := context.Background()
		client.Del(ctx, prefix+":"+broker.TopicRequests, prefix+":"+broker.TopicResults)
		_ = b.Close()
	})
	return b, prefix
}

type sink struct {
	mu  sync.Mutex
	got []string
}

func (s *sink) handle(_ context.Context, m broker.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, string(m.Payload))
	return nil
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestRedisStream_GroupsAndMembers(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &sink{}
	api := &sink{}
	go func() { _ = b.Subscribe(ctx, broker.TopicResults, "workers", "w1", workers.handle) }()
	go func() { _ = b.Subscribe(ctx, broker.TopicResults, "workers", "w2", workers.handle) }()
	go func() { _ = b.Subscribe(ctx, broker.TopicResults, "api", "a1", api.handle) }()

	for i := 0; i < 20; i++ {
		require.NoError(t, b.Publish(ctx, broker.TopicResults, []byte(fmt.Sprintf("r%d", i))))
	}

	require.Eventually(t, func() bool { return workers.len() == 20 && api.len() == 20 }, 5*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 20, workers.len(), "each message handled once per group")
}

func TestRedisStream_AcksHandledMessages(t *testing.T) {
	b, prefix := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())

	s := &sink{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Subscribe(ctx, broker.TopicRequests, "g", "c1", s.handle)
	}()
	require.NoError(t, b.Publish(ctx, broker.TopicRequests, []byte("job")))
	require.Eventually(t, func() bool { return s.len() == 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	pending, err := b.client.XPending(context.Background(), prefix+":"+broker.TopicRequests, "g").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestRedisStream_PublishError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	b := New(client, Options{}, nil)
	defer b.Close()

	err := b.Publish(context.Background(), broker.TopicRequests, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis xadd probe:requests")
}
