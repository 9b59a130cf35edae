package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/CesarCrz/cEatsv2-sub000/internal/alert"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/httpx"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/logger"
	"github.com/CesarCrz/cEatsv2-sub000/internal/feed"
	ordersync "github.com/CesarCrz/cEatsv2-sub000/internal/sync"
)

type Handler struct {
	hub   *Hub
	store ordersync.Store
	summ  Summarizer
	feed  feed.Feed
	cfg   config.Dashboard
	lg    *logger.Logger
}

func NewHandler(hub *Hub, st ordersync.Store, sm Summarizer, fd feed.Feed, cfg config.Dashboard) *Handler {
	return &Handler{hub: hub, store: st, summ: sm, feed: fd, cfg: cfg, lg: logger.New("dashboard-http")}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard/stream", h.Stream)
	mux.HandleFunc("POST /dashboard/{sid}/seen", h.MarkSeen)
	mux.HandleFunc("POST /dashboard/{sid}/audio/toggle", h.ToggleAudio)
	mux.HandleFunc("POST /dashboard/{sid}/permission", h.SetPermission)
}

// Stream mounts a dashboard: it creates a session for the requested branch
// set and streams frames until the client goes away. Teardown runs on every
// exit path.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	branches := splitBranches(r.URL.Query().Get("branches"))
	if len(branches) == 0 {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "branches query parameter is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteProblem(w, http.StatusInternalServerError, "unsupported", "streaming unsupported")
		return
	}

	sess, err := NewSession(r.Context(), branches, h.store, h.summ, h.feed, h.cfg)
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "session_failed", err.Error())
		return
	}
	h.hub.Add(sess)
	defer h.hub.Remove(sess.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame(w, Frame{Type: "hello", Data: map[string]any{"session_id": sess.ID, "branches": branches}})
	flusher.Flush()
	sess.refresh(r.Context())

	h.lg.Info("session_opened", map[string]any{"session_id": sess.ID, "branches": branches})
	for {
		select {
		case f := <-sess.Frames():
			writeFrame(w, f)
			flusher.Flush()
		case <-r.Context().Done():
			h.lg.Info("session_closed", map[string]any{"session_id": sess.ID})
			return
		}
	}
}

func (h *Handler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.hub.Get(r.PathValue("sid"))
	if !ok {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	sess.MarkSeen()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"new_orders_count": 0})
}

func (h *Handler) ToggleAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.hub.Get(r.PathValue("sid"))
	if !ok {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	sess.ToggleAudio()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"is_audio_enabled": sess.IsAudioEnabled()})
}

func (h *Handler) SetPermission(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.hub.Get(r.PathValue("sid"))
	if !ok {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "unknown session")
		return
	}
	var body struct {
		State alert.Permission `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}
	switch body.State {
	case alert.PermissionGranted, alert.PermissionDenied, alert.PermissionUndetermined:
	default:
		httpx.WriteProblem(w, http.StatusBadRequest, "bad_request", "unknown permission state")
		return
	}
	sess.SetPermission(body.State)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"state": body.State})
}

func writeFrame(w http.ResponseWriter, f Frame) {
	b, err := json.Marshal(f.Data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Type, b)
}

func splitBranches(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
