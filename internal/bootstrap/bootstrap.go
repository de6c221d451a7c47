// Package bootstrap wires configuration into the shared process pieces:
// the broker connection and the probe registry.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/broker"
	"github.com/hamed0406/reachability/internal/broker/memory"
	"github.com/hamed0406/reachability/internal/broker/redisstream"
	"github.com/hamed0406/reachability/internal/config"
	"github.com/hamed0406/reachability/internal/probe"
)

// NewBroker opens the configured broker. For Redis the server must answer
// a ping before this returns.
func NewBroker(ctx context.Context, cfg config.Config, logger *zap.Logger) (broker.Broker, error) {
	switch cfg.Broker {
	case config.BrokerMemory:
		return memory.NewWithMaxLen(logger, int(cfg.StreamMaxLen)), nil
	case config.BrokerRedis:
		client := redisstream.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		b := redisstream.New(client, redisstream.Options{
			Prefix: cfg.StreamPrefix,
			MaxLen: cfg.StreamMaxLen,
			Block:  cfg.StreamBlock,
		}, logger)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.Ping(pctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
}

func ProbeTimeouts(cfg config.Config) probe.Timeouts {
	return probe.Timeouts{
		HTTP:      cfg.HTTPTimeout,
		DNS:       cfg.DNSTimeout,
		Connect:   cfg.ConnectTimeout,
		Handshake: cfg.HandshakeTimeout,
		IO:        cfg.IOTimeout,
	}
}

func Registry(cfg config.Config) *probe.Registry {
	return probe.DefaultRegistry(ProbeTimeouts(cfg))
}
