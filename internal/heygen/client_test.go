package heygen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"avatar-compositor/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vendorCall is one request received by the fake vendor.
type vendorCall struct {
	Path   string
	Auth   string
	APIKey string
	Body   map[string]any
}

type fakeVendor struct {
	t   *testing.T
	srv *httptest.Server

	mu    sync.Mutex
	calls []vendorCall

	// responses keyed by path; missing paths answer {"data":{}}.
	status    map[string]int
	responses map[string]string
}

func newFakeVendor(t *testing.T) *fakeVendor {
	t.Helper()
	v := &fakeVendor{
		t:         t,
		status:    make(map[string]int),
		responses: make(map[string]string),
	}
	v.responses["/v1/streaming.create_token"] = `{"error":null,"data":{"token":"session-token"}}`
	v.responses["/v1/streaming.new"] = `{"code":100,"data":{"session_id":"sess-42","url":"wss://media.example","access_token":"lk"}}`
	v.srv = httptest.NewServer(http.HandlerFunc(v.serve))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *fakeVendor) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	call := vendorCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), APIKey: r.Header.Get("x-api-key")}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &call.Body)
	}

	v.mu.Lock()
	v.calls = append(v.calls, call)
	status, ok := v.status[r.URL.Path]
	if !ok {
		status = http.StatusOK
	}
	resp, ok := v.responses[r.URL.Path]
	if !ok {
		resp = `{"data":{}}`
	}
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (v *fakeVendor) Calls() []vendorCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]vendorCall(nil), v.calls...)
}

func (v *fakeVendor) respond(path string, status int, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status[path] = status
	v.responses[path] = body
}

func TestClient_CreateToken(t *testing.T) {
	v := newFakeVendor(t)
	c := NewClient("secret-key", v.srv.URL+"/", v.srv.Client())

	token, err := c.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)

	calls := v.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/v1/streaming.create_token", calls[0].Path)
	assert.Equal(t, "secret-key", calls[0].APIKey)
}

func TestClient_CreateToken_missingKey(t *testing.T) {
	v := newFakeVendor(t)
	c := NewClient("", v.srv.URL, v.srv.Client())

	_, err := c.CreateToken(context.Background())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Empty(t, v.Calls(), "no request without a key")
}

func TestClient_CreateToken_noToken(t *testing.T) {
	v := newFakeVendor(t)
	v.respond("/v1/streaming.create_token", http.StatusUnauthorized, `{"code":401,"message":"invalid key"}`)
	c := NewClient("bad", v.srv.URL, v.srv.Client())

	_, err := c.CreateToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)

	var te *TokenError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.Status)
	assert.JSONEq(t, `{"code":401,"message":"invalid key"}`, string(te.Raw))
}

func TestClient_CreateToken_undecodable(t *testing.T) {
	v := newFakeVendor(t)
	v.respond("/v1/streaming.create_token", http.StatusBadGateway, `<html>bad gateway</html>`)
	c := NewClient("key", v.srv.URL, v.srv.Client())

	_, err := c.CreateToken(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoToken)
}

func TestNewClient_defaults(t *testing.T) {
	c := NewClient("k", "", nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	require.NotNil(t, c.HTTPClient())
	assert.NotZero(t, c.HTTPClient().Timeout)
}

func TestAvatar_lifecycle(t *testing.T) {
	v := newFakeVendor(t)
	c := NewClient("key", v.srv.URL, v.srv.Client())
	a := NewAvatar(c, "session-token")
	ctx := context.Background()

	req := session.StartRequest{
		AvatarName:         "matilda",
		Quality:            "high",
		VoiceID:            "voice-1",
		DisableIdleTimeout: true,
		Background:         "transparent",
	}
	require.NoError(t, a.Start(ctx, req))
	assert.Equal(t, "sess-42", a.Info().SessionID)

	require.NoError(t, a.SendText(ctx, "hello"))
	require.NoError(t, a.Stop(ctx))
	assert.Empty(t, a.Info().SessionID)

	calls := v.Calls()
	paths := make([]string, len(calls))
	for i, c := range calls {
		paths[i] = c.Path
		assert.Equal(t, "Bearer session-token", c.Auth, c.Path)
	}
	assert.Equal(t, []string{
		"/v1/streaming.new",
		"/v1/streaming.start",
		"/v1/streaming.task",
		"/v1/streaming.stop",
	}, paths)

	newBody := calls[0].Body
	assert.Equal(t, "matilda", newBody["avatar_name"])
	assert.Equal(t, "high", newBody["quality"])
	assert.Equal(t, "transparent", newBody["background"])
	assert.Equal(t, true, newBody["disable_idle_timeout"])
	assert.Equal(t, map[string]any{"voice_id": "voice-1"}, newBody["voice"])

	assert.Equal(t, "sess-42", calls[1].Body["session_id"])
	assert.Equal(t, map[string]any{"session_id": "sess-42", "text": "hello", "task_type": TaskTalk}, calls[2].Body)
	assert.Equal(t, "sess-42", calls[3].Body["session_id"])
}

func TestAvatar_requiresSession(t *testing.T) {
	v := newFakeVendor(t)
	a := NewAvatar(NewClient("key", v.srv.URL, v.srv.Client()), "tok")
	ctx := context.Background()

	assert.ErrorIs(t, a.SendText(ctx, "hi"), ErrNoSession)
	assert.ErrorIs(t, a.Stop(ctx), ErrNoSession)
	assert.ErrorIs(t, a.StartVoiceChat(ctx, false), ErrNoSession)
	assert.Empty(t, v.Calls())
}

func TestAvatar_startRejected(t *testing.T) {
	v := newFakeVendor(t)
	v.respond("/v1/streaming.new", http.StatusBadRequest, `{"message":"unknown avatar"}`)
	a := NewAvatar(NewClient("key", v.srv.URL, v.srv.Client()), "tok")

	err := a.Start(context.Background(), session.StartRequest{AvatarName: "nobody"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "/v1/streaming.new", apiErr.Endpoint)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Body, "unknown avatar")
	assert.Empty(t, a.Info().SessionID)
}

func TestAvatar_voiceChat(t *testing.T) {
	v := newFakeVendor(t)
	a := NewAvatar(NewClient("key", v.srv.URL, v.srv.Client()), "tok")
	ctx := context.Background()
	require.NoError(t, a.Start(ctx, session.StartRequest{AvatarName: "matilda"}))

	assert.Error(t, a.MuteInput(ctx), "mute needs voice chat")
	require.NoError(t, a.StartVoiceChat(ctx, true))
	assert.NoError(t, a.UnmuteInput(ctx))
	assert.NoError(t, a.MuteInput(ctx))
	require.NoError(t, a.CloseVoiceChat(ctx))
	assert.Error(t, a.UnmuteInput(ctx))
}

func TestFactory(t *testing.T) {
	c := NewClient("key", "http://vendor.invalid", nil)
	var av session.Avatar = Factory(c)("tok")
	a, ok := av.(*Avatar)
	require.True(t, ok)
	assert.Equal(t, "tok", a.token)
	assert.Equal(t, "http://vendor.invalid", a.baseURL)
}
