package domain

import "time"

// ProbeResult is the outcome of one job. The HTTPS stage flags are nil
// when the stage was never attempted and are omitted from JSON.
type ProbeResult struct {
	ID         string     `json:"id,omitempty"`
	URL        string     `json:"url"`
	Method     string     `json:"method"`
	Type       string     `json:"type,omitempty"`
	Protocol   string     `json:"protocol,omitempty"`
	StatusCode int        `json:"status_code"`
	ElapsedMS  float64    `json:"elapsed_ms"`
	Success    bool       `json:"success"`
	Error      *string    `json:"error"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Worker     string     `json:"worker,omitempty"`

	DNSOK        *bool   `json:"dns_ok,omitempty"`
	TCPOK        *bool   `json:"tcp_ok,omitempty"`
	SSLOK        *bool   `json:"ssl_ok,omitempty"`
	SendOK       *bool   `json:"send_ok,omitempty"`
	RecvOK       *bool   `json:"recv_ok,omitempty"`
	SSLCertError *string `json:"ssl_cert_error,omitempty"`
}

// IsSuccess is the single success rule shared by every probe.
func IsSuccess(statusCode int) bool {
	return statusCode != 0 && statusCode < 400
}

// SetError stores msg, or clears the error when msg is empty.
func (r *ProbeResult) SetError(msg string) {
	if msg == "" {
		r.Error = nil
		return
	}
	r.Error = &msg
}

// ErrorString returns the error text or "".
func (r ProbeResult) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Flag returns a pointer to v for the stage fields.
func Flag(v bool) *bool { return &v }
