// Package redisstream implements the broker on Redis Streams. Each topic is
// one stream; consumer groups map directly onto XGROUP/XREADGROUP.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/broker"
)

const payloadField = "payload"

type Options struct {
	// Prefix namespaces stream keys as "<prefix>:<topic>".
	Prefix string
	// MaxLen trims each stream approximately on publish. Zero disables.
	MaxLen int64
	// Block bounds each XREADGROUP call so cancellation is observed.
	Block time.Duration
	Count int64
	// RetryDelay is the pause after a failed read before trying again.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = "probe"
	}
	if o.Block <= 0 {
		o.Block = 2 * time.Second
	}
	if o.Count <= 0 {
		o.Count = 10
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	return o
}

type Broker struct {
	client redis.UniversalClient
	opts   Options
	logger *zap.Logger
}

var _ broker.Broker = (*Broker)(nil)

// NewClient builds a client for a single node address.
func NewClient(addr, password string, db int) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: password,
		DB:       db,
	})
}

func New(client redis.UniversalClient, opts Options, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{client: client, opts: opts.withDefaults(), logger: logger}
}

func (b *Broker) streamKey(topic string) string {
	return b.opts.Prefix + ":" + topic
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: b.streamKey(topic),
		Values: map[string]any{payloadField: payload},
	}
	if b.opts.MaxLen > 0 {
		args.MaxLen = b.opts.MaxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", args.Stream, err)
	}
	return nil
}

// Subscribe first drains entries already delivered to this consumer but
// never acknowledged, then follows new entries. Handled entries are
// acknowledged whether or not the handler failed.
func (b *Broker) Subscribe(ctx context.Context, topic, group, consumer string, h broker.Handler) error {
	stream := b.streamKey(topic)
	if err := b.ensureGroup(ctx, stream, group); err != nil {
		return err
	}
	log := b.logger.With(
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("consumer", consumer),
	)

	cursor := "0"
	for ctx.Err() == nil {
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, cursor},
			Count:    b.opts.Count,
			Block:    b.opts.Block,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isNoGroup(err) {
				_ = b.ensureGroup(ctx, stream, group)
			}
			log.Warn("broker_read_error", zap.Error(err))
			b.sleep(ctx)
			continue
		}

		n := 0
		for _, s := range streams {
			for _, m := range s.Messages {
				n++
				b.handle(ctx, log, stream, group, topic, m, h)
			}
		}
		if cursor == "0" && n == 0 {
			cursor = ">"
		}
	}
	return ctx.Err()
}

func (b *Broker) handle(ctx context.Context, log *zap.Logger, stream, group, topic string, m redis.XMessage, h broker.Handler) {
	msg := broker.Message{ID: m.ID, Topic: topic, Payload: payloadOf(m)}
	if err := h(ctx, msg); err != nil {
		log.Warn("broker_handler_error", zap.String("message_id", m.ID), zap.Error(err))
	}
	// Ack with a fresh context so a shutdown mid-message still records it.
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := b.client.XAck(ackCtx, stream, group, m.ID).Err(); err != nil {
		log.Warn("broker_ack_error", zap.String("message_id", m.ID), zap.Error(err))
	}
}

func (b *Broker) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redis xgroup create %s/%s: %w", stream, group, err)
	}
	return nil
}

func (b *Broker) sleep(ctx context.Context) {
	t := time.NewTimer(b.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Broker) Close() error {
	return b.client.Close()
}

func payloadOf(m redis.XMessage) []byte {
	switch v := m.Values[payloadField].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	}
	return nil
}

func isNoGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "NOGROUP")
}
