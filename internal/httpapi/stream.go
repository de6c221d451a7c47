package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hamed0406/reachability/internal/domain"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
	streamBuffer       = 32
)

// Hub fans aggregated results out to websocket clients. A client whose
// buffer is full is disconnected rather than slowing the aggregator.
type Hub struct {
	logger *zap.Logger
	mu     sync.Mutex
	subs   map[chan domain.ProbeResult]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, subs: make(map[chan domain.ProbeResult]struct{})}
}

func (h *Hub) Observe(_ context.Context, r domain.ProbeResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- r:
		default:
			delete(h.subs, ch)
			close(ch)
			h.logger.Warn("stream_client_dropped")
		}
	}
}

func (h *Hub) subscribe() chan domain.ProbeResult {
	ch := make(chan domain.ProbeResult, streamBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan domain.ProbeResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type streamEvent struct {
	Kind    string               `json:"kind"`
	Results []domain.ProbeResult `json:"results,omitempty"`
	Result  *domain.ProbeResult  `json:"result,omitempty"`
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := s.Opts.AllowedOrigins
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
		},
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Subscribe before the snapshot so nothing falls between the two.
	ch := s.Hub.subscribe()
	defer s.Hub.unsubscribe(ch)

	recent, err := s.Results.Recent(r.Context(), s.Opts.RecentLimit)
	if err != nil {
		s.Logger.Warn("stream_snapshot_failed", zap.Error(err))
	}
	if recent == nil {
		recent = []domain.ProbeResult{}
	}
	if err := writeEvent(conn, streamEvent{Kind: "snapshot", Results: recent}); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case res, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "client too slow"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			if err := writeEvent(conn, streamEvent{Kind: "result", Result: &res}); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev streamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(ev)
}
