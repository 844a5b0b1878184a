package chromakey

import (
	"bytes"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"avatar-compositor/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

func newTestKeyRouter(t *testing.T) *chi.Mux {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(DefaultParams(), log, metrics.New())
	r := chi.NewRouter()
	r.Post("/chromakey", h.Key)
	return r
}

func encodePNG(t *testing.T, frame *image.NRGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestHandler_Key(t *testing.T) {
	r := newTestKeyRouter(t)

	frame := solid(2, 1, green)
	frame.SetNRGBA(1, 0, red)

	req := httptest.NewRequest(http.MethodPost, "/chromakey?soften_radius=0", bytes.NewReader(encodePNG(t, frame)))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("green pixel: expected alpha 0, got %d", a)
	}
	if _, _, _, a := img.At(1, 0).RGBA(); a != 0xffff {
		t.Errorf("red pixel: expected opaque, got %d", a)
	}
}

func TestHandler_Key_background(t *testing.T) {
	r := newTestKeyRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chromakey?soften_radius=0&background=%23ffffff",
		bytes.NewReader(encodePNG(t, solid(1, 1, green))))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if r, g, b, a := img.At(0, 0).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("expected opaque white, got %d,%d,%d,%d", r, g, b, a)
	}
}

func TestHandler_Key_bad_body(t *testing.T) {
	r := newTestKeyRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/chromakey", bytes.NewReader([]byte("not an image")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Key_bad_params(t *testing.T) {
	r := newTestKeyRouter(t)

	for _, q := range []string{"min_hue=abc", "residual_alpha=300", "soften_order=sideways", "background=%23zzz", "soften_radius=-1", "soften_radius=NaN", "soften_radius=Inf", "soften_radius=3000", "threshold=NaN", "min_hue=-Inf"} {
		req := httptest.NewRequest(http.MethodPost, "/chromakey?"+q, bytes.NewReader(encodePNG(t, solid(1, 1, green))))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHandler_Key_method_not_allowed(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	h := NewHandler(DefaultParams(), log, nil)

	req := httptest.NewRequest(http.MethodGet, "/chromakey", nil)
	rec := httptest.NewRecorder()
	h.Key(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestParamsFromQuery(t *testing.T) {
	q := url.Values{
		"min_hue":        {"90"},
		"max_hue":        {"150"},
		"min_saturation": {"0.25"},
		"threshold":      {"1.2"},
		"residual_alpha": {"40"},
		"soften_radius":  {"2.5"},
		"soften_order":   {"before"},
		"background":     {"#00ff00"},
	}
	p, err := ParamsFromQuery(DefaultParams(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MinHue != 90 || p.MaxHue != 150 || p.MinSaturation != 0.25 || p.Threshold != 1.2 {
		t.Errorf("classifier params not applied: %+v", p)
	}
	if p.ResidualAlpha != 40 || p.SoftenRadius != 2.5 || p.SoftenOrder != SoftenBeforeKey {
		t.Errorf("compositing params not applied: %+v", p)
	}
	if p.Background.G != 1 || p.Background.A != 1 {
		t.Errorf("background not applied: %+v", p.Background)
	}
}

func TestParamsFromQuery_empty_keeps_defaults(t *testing.T) {
	base := DefaultParams()
	p, err := ParamsFromQuery(base, url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != base {
		t.Errorf("expected defaults, got %+v", p)
	}
}
