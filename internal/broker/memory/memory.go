// Package memory is an in-process broker with consumer-group semantics.
// Messages are kept in an append-only log per topic; each group owns one
// cursor shared by all of its members.
package memory

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/broker"
)

// DefaultMaxLen caps each topic log, mirroring the stream trimming of the
// Redis implementation.
const DefaultMaxLen = 10000

type topic struct {
	// base is the absolute offset of log[0].
	base   int
	log    []broker.Message
	groups map[string]int
}

type Broker struct {
	logger *zap.Logger
	maxLen int

	mu     sync.Mutex
	topics map[string]*topic
	wake   chan struct{}
	closed bool
}

var _ broker.Broker = (*Broker)(nil)

func New(logger *zap.Logger) *Broker {
	return NewWithMaxLen(logger, DefaultMaxLen)
}

func NewWithMaxLen(logger *zap.Logger, maxLen int) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Broker{
		logger: logger,
		maxLen: maxLen,
		topics: make(map[string]*topic),
		wake:   make(chan struct{}),
	}
}

func (b *Broker) topicLocked(name string) *topic {
	t := b.topics[name]
	if t == nil {
		t = &topic{groups: make(map[string]int)}
		b.topics[name] = t
	}
	return t
}

func (b *Broker) Publish(ctx context.Context, topicName string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return broker.ErrClosed
	}
	t := b.topicLocked(topicName)
	msg := broker.Message{
		ID:      strconv.Itoa(t.base + len(t.log) + 1),
		Topic:   topicName,
		Payload: append([]byte(nil), payload...),
	}
	t.log = append(t.log, msg)
	if over := len(t.log) - b.maxLen; over > 0 {
		t.log = append(t.log[:0:0], t.log[over:]...)
		t.base += over
	}
	close(b.wake)
	b.wake = make(chan struct{})
	return nil
}

// Subscribe delivers from the start of the log for a new group, like a
// consumer with earliest offset reset.
func (b *Broker) Subscribe(ctx context.Context, topicName, group, consumer string, h broker.Handler) error {
	b.mu.Lock()
	t := b.topicLocked(topicName)
	if _, ok := t.groups[group]; !ok {
		t.groups[group] = t.base
	}
	b.mu.Unlock()

	for {
		msg, wake, ok, err := b.next(topicName, group)
		if err != nil {
			return err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-wake:
			}
			continue
		}
		if err := h(ctx, msg); err != nil {
			b.logger.Warn("broker_handler_error",
				zap.String("topic", topicName),
				zap.String("group", group),
				zap.String("consumer", consumer),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *Broker) next(topicName, group string) (broker.Message, <-chan struct{}, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return broker.Message{}, nil, false, broker.ErrClosed
	}
	t := b.topics[topicName]
	pos := t.groups[group]
	if pos < t.base {
		pos = t.base
	}
	if pos-t.base >= len(t.log) {
		return broker.Message{}, b.wake, false, nil
	}
	t.groups[group] = pos + 1
	return t.log[pos-t.base], nil, true, nil
}

// Close wakes all subscribers, which then return broker.ErrClosed.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.wake)
	}
	return nil
}
