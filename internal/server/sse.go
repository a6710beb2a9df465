package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/vesting/internal/events"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// sseReplayPage is how many stored events are read per page while replaying
// a Last-Event-ID reconnection.
var sseReplayPage = 1000

const (
	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is a single event sent to SSE clients.
type sseEvent struct {
	ID    int64 // ledger event ID
	Topic string
	Data  []byte // JSON-encoded model.Event
}

// sseHub fans committed ledger events out to connected SSE clients.
// Reconnecting clients are replayed from the event log, so the hub keeps
// no history of its own.
type sseHub struct {
	mu      sync.RWMutex
	clients map[*sseClient]struct{}
}

// sseClient represents a single connected SSE consumer.
type sseClient struct {
	topics []string       // topic glob patterns to match (empty = all)
	ch     chan *sseEvent // buffered channel for event delivery
}

func newSSEHub() *sseHub {
	return &sseHub{
		clients: make(map[*sseClient]struct{}),
	}
}

// broadcast sends an event to all connected clients whose topic filters match.
func (h *sseHub) broadcast(id int64, topic string, payload []byte) {
	evt := &sseEvent{ID: id, Topic: topic, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.matchesTopic(topic) {
			select {
			case c.ch <- evt:
			default:
				// Slow client; it can catch up with Last-Event-ID.
			}
		}
	}
}

// subscribe registers a new SSE client and returns it. Call unsubscribe when done.
func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{
		topics: topics,
		ch:     make(chan *sseEvent, 64),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// unsubscribe removes a client from the hub.
func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *sseHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// matchesTopic checks whether the client's topic filters match the given topic.
// An empty filter list matches all topics.
func (c *sseClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if events.MatchTopic(pattern, topic) {
			return true
		}
	}
	return false
}

// parseTopics splits a comma-separated topics query parameter.
func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream (SSE endpoint).
func (s *VestingServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Any Last-Event-ID, including 0, asks for a replay of later events.
	var lastID int64
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID != "" {
		id, err := strconv.ParseInt(lastEventID, 10, 64)
		if err != nil || id < 0 {
			writeError(w, http.StatusBadRequest, "invalid Last-Event-ID")
			return
		}
		lastID = id
	}

	// Subscribe before replaying so nothing committed in between is lost.
	client := s.sseHub.subscribe(parseTopics(r.URL.Query().Get("topics")))
	defer s.sseHub.unsubscribe(client)

	var replay []*model.Event
	if lastEventID != "" {
		var err error
		replay, err = s.svc.Events(r.Context(), model.EventFilter{AfterID: lastID, Limit: sseReplayPage})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to replay events")
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Replay page by page until the log is exhausted. Live events at or
	// below the last replayed ID were already sent.
	replayed := lastID
	for len(replay) > 0 {
		for _, e := range replay {
			if client.matchesTopic(e.Topic) {
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				writeSSEEvent(w, &sseEvent{ID: e.ID, Topic: e.Topic, Data: data})
			}
			replayed = e.ID
		}
		flusher.Flush()
		if len(replay) < sseReplayPage {
			break
		}
		var err error
		replay, err = s.svc.Events(r.Context(), model.EventFilter{AfterID: replayed, Limit: sseReplayPage})
		if err != nil {
			// The client resumes from the last id it saw.
			slog.Warn("sse replay failed", "after_id", replayed, "error", err)
			return
		}
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-client.ch:
			if evt.ID <= replayed {
				continue
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the writer.
func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
