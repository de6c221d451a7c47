package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/reachability/internal/domain"
)

// Prober runs one network check. Failures are reported inside the
// returned result, never as a Go error. Implementations must be safe for
// concurrent use.
type Prober interface {
	Run(ctx context.Context, job domain.ProbeJob) domain.ProbeResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, job domain.ProbeJob) domain.ProbeResult

func (f ProberFunc) Run(ctx context.Context, job domain.ProbeJob) domain.ProbeResult {
	return f(ctx, job)
}

// Timeouts bounds each network step. Zero values take the defaults.
type Timeouts struct {
	HTTP      time.Duration
	DNS       time.Duration
	Connect   time.Duration
	Handshake time.Duration
	IO        time.Duration
}

const (
	DefaultHTTPTimeout      = 10 * time.Second
	DefaultDNSTimeout       = 5 * time.Second
	DefaultConnectTimeout   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultIOTimeout        = 10 * time.Second
)

func (t Timeouts) withDefaults() Timeouts {
	if t.HTTP <= 0 {
		t.HTTP = DefaultHTTPTimeout
	}
	if t.DNS <= 0 {
		t.DNS = DefaultDNSTimeout
	}
	if t.Connect <= 0 {
		t.Connect = DefaultConnectTimeout
	}
	if t.Handshake <= 0 {
		t.Handshake = DefaultHandshakeTimeout
	}
	if t.IO <= 0 {
		t.IO = DefaultIOTimeout
	}
	return t
}

// Registry maps protocol tags to probes. It is built once at startup and
// read-only afterwards.
type Registry struct {
	probes map[domain.ProbeType]Prober
}

func NewRegistry(probes map[domain.ProbeType]Prober) *Registry {
	m := make(map[domain.ProbeType]Prober, len(probes))
	for k, v := range probes {
		if v != nil {
			m[k] = v
		}
	}
	return &Registry{probes: m}
}

// DefaultRegistry wires the HTTP and HTTPS probes.
func DefaultRegistry(t Timeouts) *Registry {
	return NewRegistry(map[domain.ProbeType]Prober{
		domain.ProbeHTTP:  NewHTTPProbe(t.HTTP),
		domain.ProbeHTTPS: NewHTTPSProbe(t),
	})
}

// Lookup resolves a job's type tag. Unknown or unregistered tags return an
// error wrapping domain.ErrUnknownProbeType.
func (r *Registry) Lookup(tag string) (Prober, domain.ProbeType, error) {
	pt, err := domain.ParseProbeType(tag)
	if err != nil {
		return nil, "", err
	}
	p, ok := r.probes[pt]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q not registered", domain.ErrUnknownProbeType, pt)
	}
	return p, pt, nil
}

func msSince(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}
