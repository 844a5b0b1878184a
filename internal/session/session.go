package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"avatar-compositor/internal/chromakey"
	"avatar-compositor/internal/platform/metrics"
)

var (
	// ErrSessionActive is returned by Start when the session is not inactive.
	ErrSessionActive = errors.New("session already active")

	// ErrInactive is returned by operations that need a running vendor session.
	ErrInactive = errors.New("session is inactive")

	// ErrClosed is returned once a session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrQueueFull is returned by Dispatch when the event queue is saturated.
	ErrQueueFull = errors.New("event queue full")

	// ErrUnknownEvent is returned for events with an unrecognised type.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrEmptyText is returned by SendText for blank input.
	ErrEmptyText = errors.New("text is empty")
)

const (
	// DefaultQueueSize is the inbound event queue capacity.
	DefaultQueueSize = 64

	// DefaultStopTimeout bounds vendor calls made while tearing a session down
	// from an event rather than a caller request.
	DefaultStopTimeout = 10 * time.Second
)

// Deps are the collaborators a Session owns or shares. Avatar and Scheduler
// are required.
type Deps struct {
	Avatar     Avatar
	Compositor *chromakey.Compositor
	Scheduler  chromakey.Scheduler
	Binder     *chromakey.Binder
	Log        *slog.Logger
	// Metrics may be nil to disable metric recording (e.g. in tests).
	Metrics *metrics.Metrics

	QueueSize   int
	StopTimeout time.Duration
}

// Session is one avatar connection. It owns the vendor adapter, the frame
// mailbox fed by the browser, the keyed output surface and the render loop
// that connects them.
//
// Vendor events go through a single queue drained by one goroutine, so state
// changes apply in arrival order. Lifecycle operations (Start, Stop, voice
// chat) are serialized with each other and with lifecycle events.
type Session struct {
	id      ID
	created time.Time

	avatar      Avatar
	comp        *chromakey.Compositor
	sched       chromakey.Scheduler
	binder      *chromakey.Binder
	log         *slog.Logger
	metrics     *metrics.Metrics
	stopTimeout time.Duration

	frames  *chromakey.LatestFrameSource
	surface *chromakey.Surface

	opMu sync.Mutex

	mu            sync.RWMutex
	state         State
	quality       ConnectionQuality
	userTalking   bool
	avatarTalking bool
	voiceActive   bool
	muted         bool
	width, height int
	history       history
	stopLoop      func()
	closed        bool

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New returns an inactive session and starts its event goroutine.
// Call Close to release it.
func New(id ID, d Deps) *Session {
	if d.QueueSize <= 0 {
		d.QueueSize = DefaultQueueSize
	}
	if d.StopTimeout <= 0 {
		d.StopTimeout = DefaultStopTimeout
	}
	if d.Binder == nil {
		d.Binder = chromakey.NewBinder()
	}
	if d.Compositor == nil {
		d.Compositor = chromakey.NewCompositor(chromakey.DefaultParams())
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	s := &Session{
		id:          id,
		created:     time.Now().UTC(),
		avatar:      d.Avatar,
		comp:        d.Compositor,
		sched:       d.Scheduler,
		binder:      d.Binder,
		log:         d.Log.With(slog.String("session_id", string(id))),
		metrics:     d.Metrics,
		stopTimeout: d.StopTimeout,
		frames:      chromakey.NewLatestFrameSource(),
		surface:     chromakey.NewSurface(),
		quality:     QualityUnknown,
		muted:       true,
		events:      make(chan Event, d.QueueSize),
		done:        make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() ID { return s.id }

// Frames returns the mailbox the browser publishes decoded avatar frames to.
func (s *Session) Frames() *chromakey.LatestFrameSource { return s.frames }

// Surface returns the keyed output surface.
func (s *Session) Surface() *chromakey.Surface { return s.surface }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:                s.id,
		State:             s.state,
		CreatedAt:         s.created,
		ConnectionQuality: s.quality,
		UserTalking:       s.userTalking,
		AvatarTalking:     s.avatarTalking,
		VoiceChatActive:   s.voiceActive,
		Muted:             s.muted,
		Keying:            s.stopLoop != nil,
		StreamWidth:       s.width,
		StreamHeight:      s.height,
		Frames:            s.frames.Stats(),
		Messages:          s.history.snapshot(),
	}
}

// Start requests the vendor session. It is only valid from StateInactive;
// the session moves to StateConnecting and waits for a stream_ready event.
// If the vendor rejects the request the session returns to StateInactive.
func (s *Session) Start(ctx context.Context, req StartRequest) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if cur := s.state; cur != StateInactive {
		s.mu.Unlock()
		s.log.Warn("start ignored, session already active", slog.String("state", cur.String()))
		return ErrSessionActive
	}
	s.state = StateConnecting
	s.mu.Unlock()

	req.Background = "transparent"
	if err := s.avatar.Start(ctx, req); err != nil {
		s.mu.Lock()
		s.state = StateInactive
		s.mu.Unlock()
		return fmt.Errorf("start avatar: %w", err)
	}

	s.log.Info("avatar session started",
		slog.String("avatar", req.AvatarName),
		slog.String("quality", req.Quality))
	if s.metrics != nil {
		s.metrics.IncSessionsStarted()
	}
	return nil
}

// Stop tears the session down: it clears the message history, closes voice
// chat, cancels the render loop and stops the vendor session. Vendor errors
// during teardown are logged, not returned. Stopping an inactive session only
// resets local state.
func (s *Session) Stop(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.teardownLocked(ctx)
}

// teardownLocked runs every exit path's cleanup. Caller must hold s.opMu.
func (s *Session) teardownLocked(ctx context.Context) {
	s.mu.Lock()
	prev := s.state
	voiceWasActive := s.voiceActive
	stopLoop := s.stopLoop
	s.stopLoop = nil
	s.history.clear()
	s.userTalking = false
	s.avatarTalking = false
	s.voiceActive = false
	s.muted = true
	s.width, s.height = 0, 0
	s.state = StateInactive
	s.mu.Unlock()

	if stopLoop != nil {
		stopLoop()
	}
	s.frames.Reset()

	if voiceWasActive {
		if err := s.avatar.CloseVoiceChat(ctx); err != nil {
			s.log.Warn("close voice chat failed", slog.String("error", err.Error()))
		}
	}
	if prev != StateInactive {
		if err := s.avatar.Stop(ctx); err != nil {
			s.log.Warn("stop avatar failed", slog.String("error", err.Error()))
		}
		s.log.Info("avatar session stopped", slog.String("from_state", prev.String()))
	}
}

// Close stops the session and its event goroutine. Idempotent.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.opMu.Lock()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.teardownLocked(ctx)
		s.opMu.Unlock()

		close(s.done)
		s.wg.Wait()
	})
}

// Dispatch queues a vendor event for the session goroutine without blocking.
func (s *Session) Dispatch(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return ErrClosed
	default:
		return ErrQueueFull
	}
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev Event) {
	switch ev.Type {
	case EventStreamReady:
		s.onStreamReady(ev)
	case EventStreamDisconnected:
		ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
		defer cancel()
		s.log.Info("stream disconnected")
		s.Stop(ctx)
	case EventConnectionQualityChanged:
		s.update(func() { s.quality = ev.Quality })
	case EventUserStart:
		s.update(func() { s.userTalking = true })
	case EventUserStop:
		s.update(func() { s.userTalking = false })
	case EventAvatarStartTalking:
		s.update(func() { s.avatarTalking = true })
	case EventAvatarStopTalking:
		s.update(func() { s.avatarTalking = false })
	case EventUserTalkingMessage:
		s.update(func() { s.history.appendFragment(SenderClient, ev.Message) })
	case EventAvatarTalkingMessage:
		s.update(func() { s.history.appendFragment(SenderAvatar, ev.Message) })
	case EventUserEndMessage, EventAvatarEndMessage:
		s.update(s.history.end)
	case EventVoiceChatReconnected:
		s.update(func() { s.voiceActive = true })
	case EventVoiceChatDisconnected:
		s.log.Warn("voice chat disconnected")
		s.update(func() { s.voiceActive = false })
	}
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// onStreamReady moves a connecting session to connected and starts keying
// the browser's frames. The loop skips passes until the first frame arrives.
func (s *Session) onStreamReady(ev Event) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == StateInactive {
		s.mu.Unlock()
		s.log.Debug("stream_ready ignored on inactive session")
		return
	}
	s.state = StateConnected
	s.width, s.height = ev.Width, ev.Height
	prevLoop := s.stopLoop
	s.stopLoop = nil
	s.mu.Unlock()

	if prevLoop != nil {
		prevLoop()
	}

	var opts []chromakey.LoopOption
	if s.metrics != nil {
		opts = append(opts, chromakey.WithPassObserver(s.metrics.ObservePass))
	}
	stop := s.binder.Attach(s.comp, s.frames, s.surface, s.sched, opts...)

	s.mu.Lock()
	s.stopLoop = stop
	s.mu.Unlock()

	s.log.Info("stream ready, chroma key attached",
		slog.Int("width", ev.Width),
		slog.Int("height", ev.Height))
}

// SendText asks the avatar to speak text.
func (s *Session) SendText(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State() == StateInactive {
		return ErrInactive
	}
	if err := s.avatar.SendText(ctx, text); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// StartVoiceChat opens voice chat. On failure voice chat stays inactive.
func (s *Session) StartVoiceChat(ctx context.Context, muted bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State() == StateInactive {
		return ErrInactive
	}
	if err := s.avatar.StartVoiceChat(ctx, muted); err != nil {
		s.update(func() { s.voiceActive = false })
		return fmt.Errorf("start voice chat: %w", err)
	}
	s.update(func() {
		s.voiceActive = true
		s.muted = muted
	})
	s.log.Info("voice chat started", slog.Bool("muted", muted))
	return nil
}

// StopVoiceChat closes voice chat. Local state is reset even if the vendor
// call fails.
func (s *Session) StopVoiceChat(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	err := s.avatar.CloseVoiceChat(ctx)
	s.update(func() {
		s.voiceActive = false
		s.muted = true
	})
	if err != nil {
		return fmt.Errorf("close voice chat: %w", err)
	}
	return nil
}

// Mute mutes the microphone input.
func (s *Session) Mute(ctx context.Context) error {
	return s.setMuted(ctx, true)
}

// Unmute unmutes the microphone input.
func (s *Session) Unmute(ctx context.Context) error {
	return s.setMuted(ctx, false)
}

func (s *Session) setMuted(ctx context.Context, muted bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.State() == StateInactive {
		return ErrInactive
	}
	call := s.avatar.UnmuteInput
	if muted {
		call = s.avatar.MuteInput
	}
	if err := call(ctx); err != nil {
		return fmt.Errorf("set muted %t: %w", muted, err)
	}
	s.update(func() { s.muted = muted })
	return nil
}
