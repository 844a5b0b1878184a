package chromakey

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"avatar-compositor/internal/platform/metrics"
)

// MaxFrameBytes caps the size of an uploaded frame.
const MaxFrameBytes = 16 << 20

// Handler keys uploaded frames in a single pass.
type Handler struct {
	defaults Params
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler whose passes start from defaults and apply any
// query overrides. Metrics may be nil.
func NewHandler(defaults Params, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{defaults: defaults, log: log, metrics: m}
}

// Key handles POST /chromakey. The body is an encoded PNG, JPEG or WebP
// frame; the response is the keyed frame as PNG.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	p, err := ParamsFromQuery(h.defaults, r.URL.Query())
	if err != nil {
		h.log.Debug("invalid chroma key params", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	frame, format, err := DecodeFrame(http.MaxBytesReader(w, r.Body, MaxFrameBytes))
	if err != nil {
		h.log.Debug("invalid frame body", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	surface := NewSurface()
	start := time.Now()
	ok := NewCompositor(p).Apply(NewImageSource(frame), surface)
	if h.metrics != nil {
		h.metrics.ObservePass(ok, time.Since(start))
	}

	var buf bytes.Buffer
	if err := surface.EncodePNG(&buf); err != nil {
		h.log.Error("encode keyed frame failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	width, height := surface.Size()
	h.log.Debug("frame keyed",
		slog.String("format", format),
		slog.Int("width", width),
		slog.Int("height", height))

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ParamsFromQuery overrides fields of base with the query parameters
// min_hue, max_hue, min_saturation, threshold, residual_alpha,
// soften_radius, soften_order and background.
func ParamsFromQuery(base Params, q url.Values) (Params, error) {
	p := base
	floats := []struct {
		key string
		dst *float64
	}{
		{"min_hue", &p.MinHue},
		{"max_hue", &p.MaxHue},
		{"min_saturation", &p.MinSaturation},
		{"threshold", &p.Threshold},
		{"soften_radius", &p.SoftenRadius},
	}
	for _, f := range floats {
		s := q.Get(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return base, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}

	if s := q.Get("residual_alpha"); s != "" {
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return base, fmt.Errorf("residual_alpha: %w", err)
		}
		p.ResidualAlpha = uint8(v)
	}
	if s := q.Get("soften_order"); s != "" {
		o, err := ParseSoftenOrder(s)
		if err != nil {
			return base, err
		}
		p.SoftenOrder = o
	}
	if q.Has("background") {
		c, err := ParseColor(q.Get("background"))
		if err != nil {
			return base, err
		}
		p.Background = c
	}
	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}
