package chromakey

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	// Registered frame formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Source is a live video source the compositor reads frames from.
type Source interface {
	// Size returns the native pixel dimensions of the current frame.
	Size() (width, height int)
	// Ready reports whether at least one decoded frame is available.
	Ready() bool
	// Frame returns the current frame. The compositor never modifies it.
	Frame() image.Image
}

// ConsistentSource is a Source whose frame can change between calls and that
// can therefore return the frame together with its size in one read.
type ConsistentSource interface {
	Source
	FrameWithSize() (frame image.Image, width, height int)
}

// ErrEmptyFrame is returned by DecodeFrame for images with no pixels.
var ErrEmptyFrame = errors.New("frame has zero width or height")

// DecodeFrame decodes a PNG, JPEG or WebP encoded frame.
func DecodeFrame(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode frame: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, format, ErrEmptyFrame
	}
	return img, format, nil
}

// ImageSource is a Source backed by a single still image.
type ImageSource struct {
	img image.Image
}

// NewImageSource returns a Source that always yields img. A nil img is never ready.
func NewImageSource(img image.Image) *ImageSource {
	return &ImageSource{img: img}
}

// Size implements Source.Size.
func (s *ImageSource) Size() (int, int) {
	if s.img == nil {
		return 0, 0
	}
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Ready implements Source.Ready.
func (s *ImageSource) Ready() bool { return s.img != nil }

// Frame implements Source.Frame.
func (s *ImageSource) Frame() image.Image { return s.img }

// FrameStats is a snapshot of a LatestFrameSource's counters.
type FrameStats struct {
	// Published counts frames handed to Publish.
	Published uint64 `json:"published"`
	// Dropped counts frames overwritten before any pass read them.
	Dropped uint64 `json:"dropped"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// LatestFrameSource is a single-slot mailbox: Publish replaces the current
// frame and the compositor always sees the newest one. Frames are never
// queued. Safe for one publisher and any number of readers.
type LatestFrameSource struct {
	mu        sync.RWMutex
	frame     image.Image
	consumed  bool
	published uint64
	dropped   uint64
}

// NewLatestFrameSource returns a source with no frame yet.
func NewLatestFrameSource() *LatestFrameSource {
	return &LatestFrameSource{}
}

// Publish makes img the current frame. img must not be modified afterwards.
func (s *LatestFrameSource) Publish(img image.Image) {
	if img == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil && !s.consumed {
		s.dropped++
	}
	s.frame = img
	s.consumed = false
	s.published++
}

// Reset forgets the current frame; the source is not ready until the next Publish.
func (s *LatestFrameSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = nil
	s.consumed = false
}

// Size implements Source.Size.
func (s *LatestFrameSource) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frame == nil {
		return 0, 0
	}
	b := s.frame.Bounds()
	return b.Dx(), b.Dy()
}

// Ready implements Source.Ready.
func (s *LatestFrameSource) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame != nil
}

// Frame implements Source.Frame and marks the frame consumed.
func (s *LatestFrameSource) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed = true
	return s.frame
}

// FrameWithSize implements ConsistentSource and marks the frame consumed.
func (s *LatestFrameSource) FrameWithSize() (image.Image, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, 0, 0
	}
	s.consumed = true
	b := s.frame.Bounds()
	return s.frame, b.Dx(), b.Dy()
}

// Stats returns a snapshot of the source counters.
func (s *LatestFrameSource) Stats() FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := FrameStats{Published: s.published, Dropped: s.dropped}
	if s.frame != nil {
		b := s.frame.Bounds()
		st.Width, st.Height = b.Dx(), b.Dy()
	}
	return st
}
