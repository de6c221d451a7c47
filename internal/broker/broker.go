// Package broker defines the publish/subscribe channel between the
// submission service, the workers and the result aggregator.
//
// Two topics exist: requests (jobs) and results. Subscribers join a
// consumer group; every message is handled by exactly one member of each
// group, and each group sees every message.
package broker

import (
	"context"
	"errors"
)

const (
	TopicRequests = "requests"
	TopicResults  = "results"
)

var ErrClosed = errors.New("broker closed")

type Message struct {
	ID      string
	Topic   string
	Payload []byte
}

// Handler processes one message. A returned error is logged by the
// subscriber; the message is not redelivered.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber blocks in Subscribe until ctx is cancelled or the transport
// fails permanently.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group, consumer string, h Handler) error
}

// Broker is both ends of the channel.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}
