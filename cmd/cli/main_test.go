package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/submit"
)

func TestParseJobs(t *testing.T) {
	reqs, err := parseJobs([]byte(`
- url: https://example.com
  type: https
- url: http://example.org/health
  method: head
`))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, submit.Request{URL: "https://example.com", Type: "https"}, reqs[0])
	assert.Equal(t, "head", reqs[1].Method)

	_, err = parseJobs([]byte(`[]`))
	assert.Error(t, err)
	_, err = parseJobs([]byte("- method: GET\n"))
	assert.Error(t, err)
	_, err = parseJobs([]byte("url: [unclosed"))
	assert.Error(t, err)
}

func TestSubmitAndResults(t *testing.T) {
	var got []submit.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/probe":
			var req submit.Request
			_ = json.NewDecoder(r.Body).Decode(&req)
			got = append(got, req)
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(submit.Ack{Queued: true, ID: "abc"})
		case r.URL.Path == "/results":
			res := domain.ProbeResult{URL: "http://x", Type: "http", Method: "GET", StatusCode: 500}
			res.SetError("HTTP 500")
			_ = json.NewEncoder(w).Encode([]domain.ProbeResult{res})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	var out bytes.Buffer
	c := &client{base: ts.URL, http: ts.Client(), out: &out}

	require.NoError(t, c.runSubmit(context.Background(), []string{"-url", "http://x", "-type", "http"}))
	require.Len(t, got, 1)
	assert.Equal(t, "http://x", got[0].URL)
	assert.Contains(t, out.String(), "queued id=abc")

	out.Reset()
	require.NoError(t, c.printResults(context.Background()))
	assert.True(t, strings.Contains(out.String(), "FAIL"), out.String())
	assert.Contains(t, out.String(), `error="HTTP 500"`)
}

func TestSubmit_RejectedByServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid url"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	var out bytes.Buffer
	c := &client{base: ts.URL, http: ts.Client(), out: &out}
	err := c.runSubmit(context.Background(), []string{"-url", "nope"})
	assert.Error(t, err)
	assert.Contains(t, out.String(), "400")
}
