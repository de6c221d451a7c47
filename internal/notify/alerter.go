package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	// Cooldown suppresses repeated failure alerts for the same URL.
	Cooldown    time.Duration
	SendTimeout time.Duration
	QueueSize   int
}

// Alerter watches aggregated results and notifies when a URL starts
// failing, and optionally when it recovers. Observe only enqueues; Run
// does the sending.
type Alerter struct {
	logger   *zap.Logger
	alertDB  repo.AlertStore
	notifier Notifier
	cfg      AlerterConfig
	queue    chan domain.ProbeResult
	now      func() time.Time
}

func NewAlerter(logger *zap.Logger, alertDB repo.AlertStore, notifier Notifier, cfg AlerterConfig) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return &Alerter{
		logger:   logger,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		queue:    make(chan domain.ProbeResult, cfg.QueueSize),
		now:      time.Now,
	}
}

// Observe never blocks; results are dropped when the queue is full.
func (a *Alerter) Observe(_ context.Context, r domain.ProbeResult) {
	select {
	case a.queue <- r:
	default:
		a.logger.Warn("alerter_queue_full", zap.String("url", r.URL))
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-a.queue:
			a.process(ctx, r)
		}
	}
}

func (a *Alerter) process(ctx context.Context, r domain.ProbeResult) {
	key := r.URL
	rec, err := a.alertDB.Get(ctx, key)
	if err != nil {
		a.logger.Warn("alerter_state_error", zap.String("url", key), zap.Error(err))
		return
	}
	now := a.now()

	// The first result for a URL counts as a change only when it fails.
	stateChanged := (rec == nil && !r.Success) || (rec != nil && rec.LastOK != r.Success)

	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	failAlert := stateChanged && !r.Success && cooled
	recoveryAlert := stateChanged && r.Success && a.cfg.AlertOnRecovery

	if failAlert || recoveryAlert {
		title := "Probe FAILED"
		if r.Success {
			title = "Probe RECOVERED"
		}
		sctx, cancel := context.WithTimeout(ctx, a.cfg.SendTimeout)
		err := a.notifier.Send(sctx, title, formatResult(r))
		cancel()
		if err != nil {
			a.logger.Warn("alerter_send_error", zap.String("url", key), zap.Error(err))
		}
		_ = a.alertDB.Set(ctx, key, r.Success, now)
		return
	}
	if stateChanged || rec == nil {
		_ = a.alertDB.Set(ctx, key, r.Success, time.Time{})
	}
}

func formatResult(r domain.ProbeResult) string {
	status := "n/a"
	if r.StatusCode != 0 {
		status = fmt.Sprintf("%d", r.StatusCode)
	}
	errTxt := r.ErrorString()
	if errTxt == "" {
		errTxt = "none"
	}
	return fmt.Sprintf(
		"URL: %s\nType: %s\nStatus: %s\nElapsed: %.0f ms\nError: %s",
		r.URL, r.Type, status, r.ElapsedMS, errTxt,
	)
}
