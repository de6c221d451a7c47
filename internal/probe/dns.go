package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/idna"
)

// Resolver is the subset of *net.Resolver the HTTPS probe needs.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DNS failure classes.
const (
	DNSInvalidName = "INVALID_NAME"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSServfail    = "SERVFAIL_or_TIMEOUT"
)

// DNSError is a resolution failure with its class.
type DNSError struct {
	Host  string
	Class string
	Err   error
}

func (e *DNSError) Error() string {
	if e.Err == nil {
		return e.Class + ": " + e.Host
	}
	return e.Class + ": " + e.Err.Error()
}

func (e *DNSError) Unwrap() error { return e.Err }

// asciiHost converts an internationalised hostname for lookup, SNI and the
// Host header. IP literals pass through unchanged.
func asciiHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return "", &DNSError{Class: DNSInvalidName, Err: errors.New("empty host")}
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", &DNSError{Host: host, Class: DNSInvalidName, Err: err}
	}
	return ascii, nil
}

// resolveIP returns one address for host, preferring IPv4.
func resolveIP(ctx context.Context, r Resolver, host string) (net.IP, error) {
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, &DNSError{Host: host, Class: classifyDNS(err), Err: err}
	}
	if len(addrs) == 0 {
		return nil, &DNSError{Host: host, Class: DNSNoARecord, Err: fmt.Errorf("no addresses for %s", host)}
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return addrs[0].IP, nil
}

func classifyDNS(err error) string {
	var de *net.DNSError
	if errors.As(err, &de) && de.IsNotFound {
		return DNSNXDomain
	}
	return DNSServfail
}
