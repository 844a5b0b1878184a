package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"avatar-compositor/internal/chromakey"
	"avatar-compositor/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// DefaultMaxFrameBytes bounds one websocket frame message when no limit is configured.
const DefaultMaxFrameBytes = 8 << 20

// Handler exposes session HTTP endpoints using go-chi.
type Handler struct {
	svc           *Service
	log           *slog.Logger
	metrics       *metrics.Metrics
	maxFrameBytes int64
	upgrader      websocket.Upgrader
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics, maxFrameBytes int) *Handler {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Handler{
		svc:           svc,
		log:           log,
		metrics:       m,
		maxFrameBytes: int64(maxFrameBytes),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes mounts the session endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Route("/{session_id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/start", h.Restart)
		r.Post("/events", h.PostEvent)
		r.Post("/text", h.SendText)
		r.Post("/voice/{action}", h.Voice)
		r.Get("/surface.png", h.Surface)
		r.Get("/frames", h.Frames)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// session resolves {session_id}, writing 404 when it is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := ID(chi.URLParam(r, "session_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	sess, err := h.svc.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

// Create handles POST /sessions. The body is an optional StartRequest.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid start request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.log.Error("create session failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	h.log.Info("session created", slog.String("session_id", string(sess.ID())))
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// Restart handles POST /sessions/{session_id}/start for a session that went
// inactive. The body is an optional StartRequest.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := h.svc.Restart(r.Context(), id, req)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, ErrSessionActive):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, ErrClosed):
		writeError(w, http.StatusGone, err)
		return
	default:
		h.log.Error("restart session failed", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err)
		return
	}

	h.log.Info("session restarted", slog.String("session_id", string(id)))
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Get handles GET /sessions/{session_id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Delete handles DELETE /sessions/{session_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := ID(chi.URLParam(r, "session_id"))
	if err := h.svc.Stop(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		h.log.Error("stop session failed", slog.String("session_id", string(id)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.log.Info("session deleted", slog.String("session_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

// PostEvent handles POST /sessions/{session_id}/events.
// Body: { "type": "stream_ready", "width": 1280, "height": 720 }.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.Dispatch(ev); err != nil {
		writeError(w, dispatchStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func dispatchStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

type textBody struct {
	Text string `json:"text"`
}

// SendText handles POST /sessions/{session_id}/text. Body: { "text": "hello" }.
func (h *Handler) SendText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var body textBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := sess.SendText(r.Context(), body.Text); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voiceBody struct {
	Muted bool `json:"muted"`
}

// Voice handles POST /sessions/{session_id}/voice/{action} where action is
// start, stop, mute or unmute. start accepts { "muted": true }.
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		var body voiceBody
		if decErr := json.NewDecoder(r.Body).Decode(&body); decErr != nil && !errors.Is(decErr, io.EOF) {
			writeError(w, http.StatusBadRequest, decErr)
			return
		}
		err = sess.StartVoiceChat(r.Context(), body.Muted)
	case "stop":
		err = sess.StopVoiceChat(r.Context())
	case "mute":
		err = sess.Mute(r.Context())
	case "unmute":
		err = sess.Unmute(r.Context())
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Warn("voice chat command failed",
			slog.String("session_id", string(sess.ID())),
			slog.String("error", err.Error()))
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, ErrInactive):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// Surface handles GET /sessions/{session_id}/surface.png. It responds 204
// until the first frame has been composited.
func (h *Handler) Surface(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if width, height := sess.Surface().Size(); width == 0 || height == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var buf bytes.Buffer
	if err := sess.Surface().EncodePNG(&buf); err != nil {
		h.log.Error("encode surface failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Frames handles GET /sessions/{session_id}/frames, a websocket the browser
// streams the avatar video into. Binary messages are encoded frames (PNG,
// JPEG or WebP) published to the session's frame mailbox; text messages are
// JSON events forwarded to the session's event queue. Rejected messages are
// answered with a JSON error and the connection stays open.
func (h *Handler) Frames(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("frame websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.maxFrameBytes)

	log := h.log.With(slog.String("session_id", string(sess.ID())))
	log.Info("frame ingest connected")

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("frame ingest read failed", slog.String("error", err.Error()))
			}
			log.Info("frame ingest disconnected")
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			frame, _, err := chromakey.DecodeFrame(bytes.NewReader(data))
			if err != nil {
				log.Debug("frame rejected", slog.String("error", err.Error()))
				_ = conn.WriteJSON(errorBody{Error: err.Error()})
				continue
			}
			sess.Frames().Publish(frame)
			if h.metrics != nil {
				h.metrics.IncFramesIngested()
			}
		case websocket.TextMessage:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				_ = conn.WriteJSON(errorBody{Error: err.Error()})
				continue
			}
			if err := sess.Dispatch(ev); err != nil {
				_ = conn.WriteJSON(errorBody{Error: err.Error()})
				if errors.Is(err, ErrClosed) {
					return
				}
			}
		}
	}
}
