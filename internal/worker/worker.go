package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/reachability/internal/broker"
	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/probe"
)

const (
	DefaultGroup = "probe-workers"

	publishTimeout = 5 * time.Second
)

// Worker pulls jobs from the requests topic, runs the matching probe and
// publishes one result per job.
type Worker struct {
	Logger      *zap.Logger
	Sub         broker.Subscriber
	Pub         broker.Publisher
	Probes      *probe.Registry
	Group       string
	ID          string
	Concurrency int
	JobTimeout  time.Duration
}

func New(
	logger *zap.Logger,
	sub broker.Subscriber,
	pub broker.Publisher,
	probes *probe.Registry,
	group, id string,
	concurrency int,
	jobTimeout time.Duration,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if group == "" {
		group = DefaultGroup
	}
	if id == "" {
		id = DefaultID()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}
	return &Worker{
		Logger:      logger,
		Sub:         sub,
		Pub:         pub,
		Probes:      probes,
		Group:       group,
		ID:          id,
		Concurrency: concurrency,
		JobTimeout:  jobTimeout,
	}
}

// DefaultID is the hostname, so a restarted process rejoins its group under
// the same consumer name. Without a hostname it falls back to a random id.
func DefaultID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-" + uuid.NewString()[:8]
	}
	return host
}

// Run blocks until ctx is cancelled or a consumer fails. Each of the
// Concurrency consumers joins the same group.
func (w *Worker) Run(ctx context.Context) error {
	w.Logger.Info("worker_started",
		zap.String("worker", w.ID),
		zap.String("group", w.Group),
		zap.Int("concurrency", w.Concurrency),
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.Concurrency; i++ {
		consumer := w.ID
		if w.Concurrency > 1 {
			consumer = fmt.Sprintf("%s-%d", w.ID, i)
		}
		g.Go(func() error {
			return w.Sub.Subscribe(gctx, broker.TopicRequests, w.Group, consumer, w.Handle)
		})
	}
	err := g.Wait()
	w.Logger.Info("worker_stopped", zap.String("worker", w.ID))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one request message. Bad input is logged and dropped;
// it never stops the loop.
func (w *Worker) Handle(ctx context.Context, msg broker.Message) error {
	job, err := domain.DecodeJob(msg.Payload)
	if err != nil {
		w.Logger.Warn("worker_malformed_job", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	job = job.WithDefaults()

	p, pt, err := w.Probes.Lookup(job.Type)
	if err != nil {
		w.Logger.Warn("worker_unknown_probe_type",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.String("type", job.Type),
		)
		return nil
	}
	job.Type = string(pt)

	// A job that was taken off the queue always runs to completion and
	// publishes; shutdown only stops the next pull.
	detached := context.WithoutCancel(ctx)
	jctx, cancel := context.WithTimeout(detached, w.JobTimeout)
	res := runSafely(jctx, p, job)
	cancel()

	res.ID = job.ID
	res.URL = job.URL
	res.Method = job.Method
	res.Type = job.Type
	res.Worker = w.ID
	res.Timestamp = nil

	payload, err := domain.EncodeResult(res)
	if err != nil {
		w.Logger.Error("worker_encode_error", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}
	pctx, cancel := context.WithTimeout(detached, publishTimeout)
	defer cancel()
	if err := w.Pub.Publish(pctx, broker.TopicResults, payload); err != nil {
		w.Logger.Warn("worker_publish_error",
			zap.String("job_id", job.ID),
			zap.String("url", job.URL),
			zap.Error(err),
		)
		return nil
	}

	w.Logger.Info("worker_finished",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.String("type", job.Type),
		zap.Int("status", res.StatusCode),
		zap.Bool("success", res.Success),
		zap.Float64("elapsed_ms", res.ElapsedMS),
		zap.String("error", res.ErrorString()),
	)
	return nil
}

// runSafely turns a panicking probe into a failed result.
func runSafely(ctx context.Context, p probe.Prober, job domain.ProbeJob) (res domain.ProbeResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = domain.ProbeResult{
				Protocol:  job.Type,
				ElapsedMS: time.Since(start).Seconds() * 1000,
			}
			res.SetError(fmt.Sprintf("Probe failed: %v", r))
		}
	}()
	return p.Run(ctx, job)
}
