package heygen

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"avatar-compositor/internal/platform/metrics"
)

// TokenHandler serves short-lived session tokens to the browser so the API
// key never leaves the server.
type TokenHandler struct {
	client  *Client
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewTokenHandler returns a TokenHandler. Metrics may be nil.
func NewTokenHandler(c *Client, log *slog.Logger, m *metrics.Metrics) *TokenHandler {
	return &TokenHandler{client: c, log: log, metrics: m}
}

type tokenResponse struct {
	Token  string          `json:"token,omitempty"`
	Error  string          `json:"error,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
	Detail string          `json:"detail,omitempty"`
}

// GetAccessToken handles POST /api/get-access-token.
// 200 { "token": "..." }; 400 when no API key is configured; 500 when the
// vendor returns no token or the exchange fails.
func (h *TokenHandler) GetAccessToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Cache-Control", "no-store")

	token, err := h.client.CreateToken(r.Context())
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncTokenFailures()
		}
		var tokenErr *TokenError
		switch {
		case errors.Is(err, ErrMissingAPIKey):
			h.log.Error("token exchange not configured")
			writeToken(w, http.StatusBadRequest, tokenResponse{Error: "Missing HEYGEN_API_KEY"})
		case errors.As(err, &tokenErr):
			h.log.Error("vendor returned no token", slog.Int("vendor_status", tokenErr.Status))
			writeToken(w, http.StatusInternalServerError, tokenResponse{Error: "Failed to create token", Raw: tokenErr.Raw})
		default:
			h.log.Error("token exchange failed", slog.String("error", err.Error()))
			writeToken(w, http.StatusInternalServerError, tokenResponse{Error: "Unexpected error", Detail: err.Error()})
		}
		return
	}

	if h.metrics != nil {
		h.metrics.IncTokensIssued()
	}
	h.log.Debug("session token issued")
	writeToken(w, http.StatusOK, tokenResponse{Token: token})
}

func writeToken(w http.ResponseWriter, status int, body tokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
