package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/reachability/internal/domain"
)

const maxDrainBytes = 64 << 10

// HTTPProbe issues a single request through net/http and reports the
// status code. Redirects are not followed.
type HTTPProbe struct {
	Client *http.Client
}

func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPProbe{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPProbe) Run(ctx context.Context, job domain.ProbeJob) domain.ProbeResult {
	res := domain.ProbeResult{
		URL:      job.URL,
		Method:   job.Method,
		Protocol: string(domain.ProbeHTTP),
	}
	if res.Method == "" {
		res.Method = domain.DefaultMethod
	}

	req, err := http.NewRequestWithContext(ctx, res.Method, job.URL, nil)
	if err != nil {
		res.SetError(err.Error())
		return res
	}

	start := time.Now()
	resp, err := h.Client.Do(req)
	res.ElapsedMS = msSince(start)
	if err != nil {
		res.SetError(err.Error())
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	res.StatusCode = resp.StatusCode
	res.Success = domain.IsSuccess(resp.StatusCode)
	return res
}
