package submit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/broker"
	"github.com/hamed0406/reachability/internal/domain"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	// ErrPublish wraps broker failures so callers can map them to 503.
	ErrPublish = errors.New("publish failed")
)

type Request struct {
	URL    string `json:"url" yaml:"url"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
}

type Ack struct {
	Queued bool   `json:"queued"`
	ID     string `json:"id"`
}

// Service enqueues probe jobs without waiting for their results.
type Service struct {
	Pub    broker.Publisher
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

func New(pub broker.Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Pub:    pub,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
		NewID:  uuid.NewString,
	}
}

func (s *Service) Submit(ctx context.Context, req Request) (Ack, error) {
	job := domain.ProbeJob{URL: req.URL, Method: req.Method, Type: req.Type}.WithDefaults()
	if err := validateURL(job.URL); err != nil {
		return Ack{}, err
	}
	job.ID = s.NewID()
	job.SubmittedAt = s.Now()

	payload, err := domain.EncodeJob(job)
	if err != nil {
		return Ack{}, err
	}
	if err := s.Pub.Publish(ctx, broker.TopicRequests, payload); err != nil {
		s.Logger.Warn("submit_publish_error", zap.String("url", job.URL), zap.Error(err))
		return Ack{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	s.Logger.Info("submit_queued",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.String("method", job.Method),
		zap.String("type", job.Type),
	)
	return Ack{Queued: true, ID: job.ID}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URI", ErrInvalidURL, raw)
	}
	return nil
}
