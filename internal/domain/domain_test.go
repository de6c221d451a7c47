package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseProbeType(t *testing.T) {
	cases := []struct {
		in      string
		want    ProbeType
		wantErr bool
	}{
		{"", ProbeHTTP, false},
		{"http", ProbeHTTP, false},
		{"HTTPS", ProbeHTTPS, false},
		{" https ", ProbeHTTPS, false},
		{"ftp", "", true},
	}
	for _, c := range cases {
		got, err := ParseProbeType(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrUnknownProbeType) {
				t.Fatalf("ParseProbeType(%q) err=%v, want ErrUnknownProbeType", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("ParseProbeType(%q)=%q,%v want %q", c.in, got, err, c.want)
		}
	}
}

func TestProbeJob_WithDefaults(t *testing.T) {
	j := ProbeJob{URL: " http://example.com "}.WithDefaults()
	if j.URL != "http://example.com" || j.Method != "GET" || j.Type != "http" {
		t.Fatalf("unexpected defaults: %+v", j)
	}

	j = ProbeJob{URL: "https://x", Method: "post", Type: "FTP"}.WithDefaults()
	if j.Method != "POST" || j.Type != "ftp" {
		t.Fatalf("unexpected normalisation: %+v", j)
	}
}

func TestIsSuccess(t *testing.T) {
	cases := map[int]bool{0: false, 200: true, 301: true, 399: true, 400: false, 503: false}
	for code, want := range cases {
		if got := IsSuccess(code); got != want {
			t.Fatalf("IsSuccess(%d)=%v want %v", code, got, want)
		}
	}
}

func TestProbeResult_HTTPOmitsStageFlags(t *testing.T) {
	r := ProbeResult{URL: "http://example.com", Method: "GET", Protocol: "http", StatusCode: 200, Success: true}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, k := range []string{"dns_ok", "tcp_ok", "ssl_ok", "send_ok", "recv_ok", "ssl_cert_error"} {
		if strings.Contains(s, k) {
			t.Fatalf("expected %s to be absent in %s", k, s)
		}
	}
	if !strings.Contains(s, `"error":null`) {
		t.Fatalf("expected explicit null error in %s", s)
	}
}

func TestProbeResult_StageFlagsKeepFalse(t *testing.T) {
	r := ProbeResult{URL: "https://nope.invalid", DNSOK: Flag(false)}
	b, _ := json.Marshal(r)
	if !strings.Contains(string(b), `"dns_ok":false`) {
		t.Fatalf("dns_ok=false must be encoded, got %s", b)
	}
	if strings.Contains(string(b), "tcp_ok") {
		t.Fatalf("tcp_ok must be absent when not attempted, got %s", b)
	}
}

func TestDecodeResult_RejectsMalformed(t *testing.T) {
	if _, err := DecodeResult([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if _, err := DecodeResult([]byte(`{"status_code":200}`)); err == nil {
		t.Fatal("expected error for missing url")
	}
	r, err := DecodeResult([]byte(`{"url":"http://a","status_code":204,"success":true}`))
	if err != nil || r.StatusCode != 204 || !r.Success {
		t.Fatalf("unexpected decode: %+v err=%v", r, err)
	}
}
