package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"avatar-compositor/internal/chromakey"
)

var errVendor = errors.New("vendor unavailable")

// fakeAvatar records every call and fails the ones listed in fail.
type fakeAvatar struct {
	mu    sync.Mutex
	calls []string
	start StartRequest
	texts []string
	fail  map[string]error
}

func newFakeAvatar() *fakeAvatar {
	return &fakeAvatar{fail: make(map[string]error)}
}

func (a *fakeAvatar) record(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, name)
	return a.fail[name]
}

func (a *fakeAvatar) failOn(name string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[name] = err
}

func (a *fakeAvatar) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAvatar) count(name string) int {
	n := 0
	for _, c := range a.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (a *fakeAvatar) Start(_ context.Context, req StartRequest) error {
	a.mu.Lock()
	a.start = req
	a.mu.Unlock()
	return a.record("start")
}

func (a *fakeAvatar) Stop(context.Context) error { return a.record("stop") }

func (a *fakeAvatar) SendText(_ context.Context, text string) error {
	if err := a.record("text"); err != nil {
		return err
	}
	a.mu.Lock()
	a.texts = append(a.texts, text)
	a.mu.Unlock()
	return nil
}

func (a *fakeAvatar) StartVoiceChat(context.Context, bool) error { return a.record("voice_start") }
func (a *fakeAvatar) CloseVoiceChat(context.Context) error       { return a.record("voice_close") }
func (a *fakeAvatar) MuteInput(context.Context) error            { return a.record("mute") }
func (a *fakeAvatar) UnmuteInput(context.Context) error          { return a.record("unmute") }

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) CreateToken(context.Context) (string, error) {
	return f.token, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type harness struct {
	sess   *Session
	avatar *fakeAvatar
	sched  *chromakey.ManualScheduler
	binder *chromakey.Binder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	params := chromakey.DefaultParams()
	params.SoftenRadius = 0
	h := &harness{
		avatar: newFakeAvatar(),
		sched:  chromakey.NewManualScheduler(),
		binder: chromakey.NewBinder(),
	}
	h.sess = New("s1", Deps{
		Avatar:     h.avatar,
		Compositor: chromakey.NewCompositor(params),
		Scheduler:  h.sched,
		Binder:     h.binder,
		Log:        testLogger(),
	})
	t.Cleanup(func() { h.sess.Close(context.Background()) })
	return h
}
