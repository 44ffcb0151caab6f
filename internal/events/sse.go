package events

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

const heartbeatInterval = 30 * time.Second

// SSEHandler streams hub events over Server-Sent Events for clients that
// cannot hold a WebSocket open. An optional topics query parameter narrows
// delivery, e.g. ?topics=posts,comments.
type SSEHandler struct {
	hub *Hub
}

func NewSSEHandler(hub *Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	topics := parseTopics(r)

	ctx := r.Context()
	ch, cancel := h.hub.Subscribe(ctx)
	defer cancel()

	sendEvent(w, flusher, "connected", "-", []byte(`{}`))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.hub.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			payload := fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix())
			sendEvent(w, flusher, "heartbeat", "-", []byte(payload))

		case evt, open := <-ch:
			if !open {
				return
			}
			if len(topics) > 0 && !topics[evt.Topic] {
				continue
			}
			sendEvent(w, flusher, evt.Type, evt.Topic, evt.Data)
		}
	}
}

func parseTopics(r *http.Request) map[string]bool {
	raw := r.URL.Query().Get("topics")
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType, id string, data []byte) {
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
