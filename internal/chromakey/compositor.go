package chromakey

import "image"

// Compositor keys one source frame at a time into a Surface.
// It holds no per-frame state: a pass is a pure function of frame and Params.
type Compositor struct {
	params Params
}

// NewCompositor returns a Compositor using p for every pass.
func NewCompositor(p Params) *Compositor {
	return &Compositor{params: p}
}

// Params returns the compositor settings.
func (c *Compositor) Params() Params {
	return c.params
}

// Apply runs one pass: it resizes dst to the source, copies the current
// frame in, keys the background, optionally softens edges and composites the
// fallback colour behind the result.
//
// When the source has no frame yet or reports a zero dimension, dst is left
// untouched and Apply returns false. This is the normal state of a stream
// that is still warming up, so it is not an error.
func (c *Compositor) Apply(src Source, dst *Surface) bool {
	if src == nil || dst == nil || !src.Ready() {
		return false
	}
	frame, w, h := readFrame(src)
	if frame == nil || w <= 0 || h <= 0 {
		return false
	}
	if b := frame.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return false
	}

	dst.mu.Lock()
	defer dst.mu.Unlock()

	dst.resizeLocked(w, h)
	dst.copyFromLocked(frame)

	p := c.params
	if p.SoftenOrder == SoftenBeforeKey {
		dst.blurLocked(p.SoftenRadius)
	}
	dst.keyLocked(p)
	if p.SoftenOrder == SoftenAfterKey {
		dst.blurLocked(p.SoftenRadius)
	}
	dst.drawBehindLocked(p.Background)
	return true
}

func readFrame(src Source) (image.Image, int, int) {
	if cs, ok := src.(ConsistentSource); ok {
		return cs.FrameWithSize()
	}
	w, h := src.Size()
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	return src.Frame(), w, h
}
