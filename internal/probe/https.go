package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/reachability/internal/domain"
)

const DefaultMaxResponseBytes = 1 << 20

// HTTPSProbe drives DNS, TCP, TLS, send and receive by hand so each step
// gets its own flag in the result. A certificate verification failure is
// recorded and followed by one unverified handshake so the application
// layer behind a broken chain can still be observed.
type HTTPSProbe struct {
	Resolver Resolver
	Timeouts Timeouts
	// RootCAs overrides the system trust store when set.
	RootCAs          *x509.CertPool
	MaxResponseBytes int64
}

func NewHTTPSProbe(t Timeouts) *HTTPSProbe {
	return &HTTPSProbe{
		Resolver:         net.DefaultResolver,
		Timeouts:         t.withDefaults(),
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

func (p *HTTPSProbe) Run(ctx context.Context, job domain.ProbeJob) domain.ProbeResult {
	res := domain.ProbeResult{
		URL:      job.URL,
		Method:   job.Method,
		Protocol: string(domain.ProbeHTTPS),
	}
	if res.Method == "" {
		res.Method = domain.DefaultMethod
	}

	s := &httpsSession{probe: p, res: &res, timeouts: p.Timeouts.withDefaults()}
	start := time.Now()
	s.run(ctx, job.URL)
	s.close()
	res.ElapsedMS = msSince(start)

	res.SetError(joinCauses(s.causes))
	res.Success = domain.IsSuccess(res.StatusCode)
	return res
}

func (p *HTTPSProbe) tlsConfig(serverName string, verify bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		RootCAs:            p.RootCAs,
		InsecureSkipVerify: !verify, //nolint:gosec // fallback handshake only
	}
}

// httpsSession holds the state of one probe run. Each stage returns false
// to stop the sequence.
type httpsSession struct {
	probe    *HTTPSProbe
	res      *domain.ProbeResult
	timeouts Timeouts
	causes   error

	raw  net.Conn
	conn *tls.Conn
}

func (s *httpsSession) run(ctx context.Context, rawURL string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		s.res.DNSOK = domain.Flag(false)
		s.fail("DNS", &DNSError{Class: DNSInvalidName, Err: err})
		return
	}
	host, ip, ok := s.resolve(ctx, u.Hostname())
	if !ok {
		return
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(ip.String(), port)

	if !s.connect(ctx, addr) {
		return
	}
	if !s.handshake(ctx, addr, host) {
		return
	}
	if !s.send(requestTarget(u), hostHeader(host, u.Port())) {
		return
	}
	s.receive()
}

func (s *httpsSession) resolve(ctx context.Context, hostname string) (string, net.IP, bool) {
	host, err := asciiHost(hostname)
	if err == nil {
		var ip net.IP
		lctx, cancel := context.WithTimeout(ctx, s.timeouts.DNS)
		ip, err = resolveIP(lctx, s.resolver(), host)
		cancel()
		if err == nil {
			s.res.DNSOK = domain.Flag(true)
			return host, ip, true
		}
	}
	s.res.DNSOK = domain.Flag(false)
	s.fail("DNS", err)
	return "", nil, false
}

func (s *httpsSession) connect(ctx context.Context, addr string) bool {
	conn, err := s.dial(ctx, addr)
	if err != nil {
		s.res.TCPOK = domain.Flag(false)
		s.fail("TCP", err)
		return false
	}
	s.raw = conn
	s.res.TCPOK = domain.Flag(true)
	return true
}

func (s *httpsSession) dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: s.timeouts.Connect}
	return d.DialContext(ctx, "tcp", addr)
}

func (s *httpsSession) handshake(ctx context.Context, addr, serverName string) bool {
	err := s.startTLS(ctx, s.probe.tlsConfig(serverName, true))
	if err == nil {
		s.res.SSLOK = domain.Flag(true)
		return true
	}
	s.res.SSLOK = domain.Flag(false)
	if !isCertificateError(err) {
		s.fail("SSL", err)
		return false
	}
	certErr := err.Error()
	s.res.SSLCertError = &certErr

	// The aborted handshake left a fatal alert on the wire, so the
	// unverified retry needs a fresh connection to the same address.
	s.close()
	conn, err := s.dial(ctx, addr)
	if err == nil {
		s.raw = conn
		err = s.startTLS(ctx, s.probe.tlsConfig(serverName, false))
	}
	if err != nil {
		s.fail("SSL fallback failed", err)
		return false
	}
	return true
}

func (s *httpsSession) startTLS(ctx context.Context, cfg *tls.Config) error {
	conn := tls.Client(s.raw, cfg)
	hctx, cancel := context.WithTimeout(ctx, s.timeouts.Handshake)
	defer cancel()
	if err := conn.HandshakeContext(hctx); err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *httpsSession) send(target, host string) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeouts.IO))
	req := fmt.Sprintf("%s %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", s.res.Method, target, host)
	if _, err := io.WriteString(s.conn, req); err != nil {
		s.res.SendOK = domain.Flag(false)
		s.fail("Send", err)
		return false
	}
	s.res.SendOK = domain.Flag(true)
	return true
}

func (s *httpsSession) receive() {
	limit := s.probe.MaxResponseBytes
	if limit <= 0 {
		limit = DefaultMaxResponseBytes
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.timeouts.IO))
	body, err := io.ReadAll(io.LimitReader(s.conn, limit))
	// A peer that keeps the socket open after answering ends at the read
	// deadline; data already received counts as the full response.
	if err != nil && !(isTimeout(err) && len(body) > 0) {
		s.res.RecvOK = domain.Flag(false)
		s.fail("Receive", err)
		return
	}
	s.res.RecvOK = domain.Flag(true)

	code, err := parseStatusLine(body)
	if err != nil {
		s.fail("Parse", err)
		return
	}
	s.res.StatusCode = code
}

// close releases whichever of the TLS session or raw socket is open.
func (s *httpsSession) close() {
	switch {
	case s.conn != nil:
		_ = s.conn.Close()
	case s.raw != nil:
		_ = s.raw.Close()
	}
	s.conn, s.raw = nil, nil
}

func (s *httpsSession) fail(stage string, err error) {
	s.causes = multierr.Append(s.causes, fmt.Errorf("%s: %w", stage, err))
}

func (s *httpsSession) resolver() Resolver {
	if s.probe.Resolver != nil {
		return s.probe.Resolver
	}
	return net.DefaultResolver
}

func requestTarget(u *url.URL) string {
	if t := u.RequestURI(); t != "" {
		return t
	}
	return "/"
}

// hostHeader formats the Host header value: IPv6 literals are bracketed and
// an explicit port is kept.
func hostHeader(host, port string) string {
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

func isCertificateError(err error) bool {
	var (
		verifyErr  *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
		hostErr    x509.HostnameError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &hostErr)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseStatusLine reads the status code from "HTTP/1.1 200 OK\r\n...".
func parseStatusLine(resp []byte) (int, error) {
	if len(resp) == 0 {
		return 0, errors.New("empty response")
	}
	line, _, _ := bytes.Cut(resp, []byte("\r\n"))
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed status line %q", truncate(line, 64))
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 999 {
		return 0, fmt.Errorf("malformed status code %q", truncate([]byte(fields[1]), 16))
	}
	return code, nil
}

func joinCauses(err error) string {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
