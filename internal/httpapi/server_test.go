package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/aggregator"
	"github.com/hamed0406/reachability/internal/broker"
	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/mocks"
	"github.com/hamed0406/reachability/internal/repo/memory"
	"github.com/hamed0406/reachability/internal/submit"
)

// ---- test helpers ----

type fixture struct {
	pub *mocks.MockPublisher
	agg *aggregator.Aggregator
	hub *Hub
	h   http.Handler
}

func setup(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	hub := NewHub(zap.NewNop())
	agg := aggregator.New(nil, memory.NewResultCache(100), zap.NewNop(), "", "", hub)

	svc := submit.New(pub, zap.NewNop())
	srv := NewServer(zap.NewNop(), svc, agg, hub, opts)
	return &fixture{pub: pub, agg: agg, hub: hub, h: srv.Router()}
}

func (f *fixture) feed(t *testing.T, r domain.ProbeResult) {
	t.Helper()
	b, err := domain.EncodeResult(r)
	require.NoError(t, err)
	require.NoError(t, f.agg.Handle(context.Background(), broker.Message{Payload: b}))
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	f := setup(t, Options{})
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestPostProbe_Queued(t *testing.T) {
	f := setup(t, Options{})
	f.pub.EXPECT().Publish(gomock.Any(), broker.TopicRequests, gomock.Any()).Return(nil)

	rr := post(f.h, `{"url":"https://example.com","type":"https"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var ack submit.Ack
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	assert.True(t, ack.Queued)
	assert.NotEmpty(t, ack.ID)
}

func TestPostProbe_BadInput(t *testing.T) {
	f := setup(t, Options{})
	for _, body := range []string{`{bad json`, `{"url":""}`, `{"url":"not-a-url"}`} {
		rr := post(f.h, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
	}
}

func TestPostProbe_PublishFailure(t *testing.T) {
	f := setup(t, Options{})
	f.pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("down"))

	rr := post(f.h, `{"url":"http://example.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPostProbe_RateLimited(t *testing.T) {
	f := setup(t, Options{SubmitRPM: 60, SubmitBurst: 1})
	f.pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	assert.Equal(t, http.StatusAccepted, post(f.h, `{"url":"http://example.com"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(f.h, `{"url":"http://example.com"}`).Code)
}

func TestGetResults_EmptyArray(t *testing.T) {
	f := setup(t, Options{})
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/results", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestGetResults_NewestFirstMaxTen(t *testing.T) {
	f := setup(t, Options{})
	for i := 1; i <= 15; i++ {
		f.feed(t, domain.ProbeResult{ID: fmt.Sprintf("R%d", i), URL: "http://example.com", StatusCode: 200, Success: true})
	}

	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 10)
	assert.Equal(t, "R15", got[0]["id"])
	assert.Equal(t, "R6", got[9]["id"])
	assert.Contains(t, got[0], "timestamp")
	assert.Contains(t, got[0], "error")
	assert.NotContains(t, got[0], "dns_ok")
}

func TestStream_SnapshotThenLiveResults(t *testing.T) {
	f := setup(t, Options{})
	f.feed(t, domain.ProbeResult{ID: "old", URL: "http://a"})

	ts := httptest.NewServer(f.h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/results/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snap streamEvent
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Kind)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "old", snap.Results[0].ID)

	require.Eventually(t, func() bool { return f.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
	f.feed(t, domain.ProbeResult{ID: "new", URL: "http://b"})

	var ev streamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "result", ev.Kind)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "new", ev.Result.ID)
	assert.NotNil(t, ev.Result.Timestamp)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	f := setup(t, Options{AllowedOrigins: []string{"https://dash.example.com"}})
	ts := httptest.NewServer(f.h)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/results/stream"
	hdr := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := NewHub(nil)
	ch := h.subscribe()
	for i := 0; i < streamBuffer+1; i++ {
		h.Observe(context.Background(), domain.ProbeResult{URL: "http://a"})
	}
	assert.Equal(t, 0, h.Len())

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, streamBuffer, n)
	h.unsubscribe(ch)
}
