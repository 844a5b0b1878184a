package chromakey

import (
	"slices"
	"sync"
	"time"
)

// FrameID identifies a callback queued on a Scheduler.
type FrameID uint64

// Scheduler is the display-refresh primitive a render loop paces itself on.
// RequestFrame queues fn to run once on the next refresh; CancelFrame drops a
// queued callback and is a no-op for callbacks that already ran.
type Scheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// DefaultRefreshRate is the refresh rate used when none is configured.
const DefaultRefreshRate = 30

// TickerScheduler fires queued callbacks on a fixed refresh tick.
// Callbacks run sequentially on the scheduler goroutine, in request order.
type TickerScheduler struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func()

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTickerScheduler starts a scheduler ticking fps times per second.
// If fps <= 0, DefaultRefreshRate is used. Call Close to stop it.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultRefreshRate
	}
	s := &TickerScheduler{
		pending: make(map[FrameID]func()),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run(time.Second / time.Duration(fps))
	return s
}

// RequestFrame implements Scheduler.RequestFrame.
func (s *TickerScheduler) RequestFrame(fn func()) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	return s.next
}

// CancelFrame implements Scheduler.CancelFrame.
func (s *TickerScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Close stops the tick goroutine and waits for it to exit. Callbacks still
// queued never run. Idempotent.
func (s *TickerScheduler) Close() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *TickerScheduler) run(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

// fire runs every callback queued before this tick. Callbacks queued while
// firing wait for the next tick.
func (s *TickerScheduler) fire() {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[FrameID]func())
	s.mu.Unlock()

	runBatch(batch)
}

func runBatch(batch map[FrameID]func()) {
	ids := make([]FrameID, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		batch[id]()
	}
}

// ManualScheduler only fires when Tick is called. It lets callers step a
// render loop deterministically, e.g. from tests or an offline renderer.
type ManualScheduler struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]func()
}

// NewManualScheduler returns a scheduler with nothing queued.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[FrameID]func())}
}

// RequestFrame implements Scheduler.RequestFrame.
func (s *ManualScheduler) RequestFrame(fn func()) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	return s.next
}

// CancelFrame implements Scheduler.CancelFrame.
func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Tick fires one refresh and returns how many callbacks ran.
func (s *ManualScheduler) Tick() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[FrameID]func())
	s.mu.Unlock()

	runBatch(batch)
	return len(batch)
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
