package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	err := s.Send(context.Background(), "Probe FAILED", "URL: http://x")
	if err != nil {
		t.Fatalf("send err: %v", err)
	}
	if !strings.HasPrefix(got, "*Probe FAILED*\n") {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	err := s.Send(context.Background(), "X", "Y")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error on non-2xx, got %v", err)
	}
}

func TestSlack_Disabled(t *testing.T) {
	if s := NewSlack(""); s != nil {
		t.Fatal("empty webhook should disable slack")
	}
	var s *Slack
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrSlackDisabled) {
		t.Fatalf("expected ErrSlackDisabled, got %v", err)
	}
}

type countingNotifier struct {
	n   int
	err error
}

func (c *countingNotifier) Send(context.Context, string, string) error {
	c.n++
	return c.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &countingNotifier{err: errors.New("a failed")}
	b := &countingNotifier{}
	c := &countingNotifier{err: errors.New("c failed")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "t", "x")
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("expected every notifier called once: %d %d %d", a.n, b.n, c.n)
	}
	if err == nil || !strings.Contains(err.Error(), "a failed") || !strings.Contains(err.Error(), "c failed") {
		t.Fatalf("expected combined error, got %v", err)
	}
}
