package aggregator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/broker"
	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/repo"
)

const (
	DefaultGroup       = "result-api"
	DefaultRecentLimit = 10
)

// Observer is told about every accepted result after it is cached.
// Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, r domain.ProbeResult)
}

type Aggregator struct {
	Sub       broker.Subscriber
	Store     repo.ResultStore
	Logger    *zap.Logger
	Group     string
	Consumer  string
	Now       func() time.Time
	Observers []Observer
}

func New(sub broker.Subscriber, store repo.ResultStore, logger *zap.Logger, group, consumer string, observers ...Observer) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if group == "" {
		group = DefaultGroup
	}
	if consumer == "" {
		consumer = group
	}
	return &Aggregator{
		Sub:       sub,
		Store:     store,
		Logger:    logger,
		Group:     group,
		Consumer:  consumer,
		Now:       func() time.Time { return time.Now().UTC() },
		Observers: observers,
	}
}

// Run consumes the results topic until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	a.Logger.Info("aggregator_started", zap.String("group", a.Group))
	err := a.Sub.Subscribe(ctx, broker.TopicResults, a.Group, a.Consumer, a.Handle)
	a.Logger.Info("aggregator_stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *Aggregator) Handle(ctx context.Context, msg broker.Message) error {
	res, err := domain.DecodeResult(msg.Payload)
	if err != nil {
		a.Logger.Warn("aggregator_malformed_result", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	now := a.Now()
	res.Timestamp = &now

	if err := a.Store.Append(ctx, res); err != nil {
		a.Logger.Warn("aggregator_append_error", zap.String("url", res.URL), zap.Error(err))
		return nil
	}
	for _, o := range a.Observers {
		if o != nil {
			o.Observe(ctx, res)
		}
	}
	a.Logger.Debug("aggregator_stored",
		zap.String("job_id", res.ID),
		zap.String("url", res.URL),
		zap.Bool("success", res.Success),
	)
	return nil
}

// Recent returns up to n results, newest first. n <= 0 means the default.
func (a *Aggregator) Recent(ctx context.Context, n int) ([]domain.ProbeResult, error) {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	return a.Store.Recent(ctx, n)
}
