package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProbeType selects which probe runs a job.
type ProbeType string

const (
	ProbeHTTP  ProbeType = "http"
	ProbeHTTPS ProbeType = "https"
)

const DefaultMethod = "GET"

var ErrUnknownProbeType = errors.New("unknown probe type")

// ParseProbeType accepts only the known protocol tags. Empty means http.
func ParseProbeType(s string) (ProbeType, error) {
	switch ProbeType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProbeHTTP:
		return ProbeHTTP, nil
	case ProbeHTTPS:
		return ProbeHTTPS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProbeType, s)
}

// ProbeJob is one request to probe an endpoint. It is published to the
// requests topic and never modified afterwards.
type ProbeJob struct {
	ID          string    `json:"id,omitempty" yaml:"id,omitempty"`
	URL         string    `json:"url" yaml:"url"`
	Method      string    `json:"method" yaml:"method,omitempty"`
	Type        string    `json:"type" yaml:"type,omitempty"`
	SubmittedAt time.Time `json:"submitted_at,omitempty" yaml:"-"`
}

// WithDefaults fills in method and type. The type tag is lower-cased but
// not validated; workers decide what to do with unknown tags.
func (j ProbeJob) WithDefaults() ProbeJob {
	j.URL = strings.TrimSpace(j.URL)
	j.Method = strings.ToUpper(strings.TrimSpace(j.Method))
	if j.Method == "" {
		j.Method = DefaultMethod
	}
	j.Type = strings.ToLower(strings.TrimSpace(j.Type))
	if j.Type == "" {
		j.Type = string(ProbeHTTP)
	}
	return j
}
