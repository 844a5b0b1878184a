package chromakey

import (
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"
)

// Surface is the presentation buffer a keyed frame is written to.
// Pixels are stored non-premultiplied, 4 bytes per pixel, in a gg.Pixmap.
// A Surface is safe for concurrent readers while a pass writes to it.
type Surface struct {
	mu sync.RWMutex
	pm *gg.Pixmap
}

// NewSurface returns an empty 0x0 surface.
func NewSurface() *Surface {
	return &Surface{pm: gg.NewPixmap(0, 0)}
}

// Size returns the surface dimensions.
func (s *Surface) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pm.Width(), s.pm.Height()
}

// Snapshot returns a copy of the surface contents.
func (s *Surface) Snapshot() *image.NRGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img := image.NewNRGBA(image.Rect(0, 0, s.pm.Width(), s.pm.Height()))
	copy(img.Pix, s.pm.Data())
	return img
}

// EncodePNG writes the current surface contents as a PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Snapshot())
}

// resizeLocked reallocates the pixmap when the dimensions change.
// Caller must hold s.mu in write mode.
func (s *Surface) resizeLocked(width, height int) {
	if s.pm.Width() == width && s.pm.Height() == height {
		return
	}
	s.pm = gg.NewPixmap(width, height)
}

// view exposes the pixmap storage as an image without copying.
// Caller must hold s.mu.
func (s *Surface) viewLocked() *image.NRGBA {
	w, h := s.pm.Width(), s.pm.Height()
	return &image.NRGBA{Pix: s.pm.Data(), Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
}

// copyFromLocked overwrites the surface with frame, scaling it when the
// frame bounds differ from the surface size. Caller must hold s.mu in write mode.
func (s *Surface) copyFromLocked(frame image.Image) {
	dst := s.viewLocked()
	fb := frame.Bounds()

	if src, ok := frame.(*image.NRGBA); ok && fb.Dx() == dst.Rect.Dx() && fb.Dy() == dst.Rect.Dy() {
		rowLen := dst.Rect.Dx() * 4
		for y := 0; y < fb.Dy(); y++ {
			srcOff := src.PixOffset(fb.Min.X, fb.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowLen], src.Pix[srcOff:srcOff+rowLen])
		}
		return
	}

	if fb.Dx() == dst.Rect.Dx() && fb.Dy() == dst.Rect.Dy() {
		draw.Draw(dst, dst.Rect, frame, fb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Rect, frame, fb, draw.Src, nil)
}

// keyLocked rewrites the alpha of every background pixel.
// Caller must hold s.mu in write mode.
func (s *Surface) keyLocked(p Params) {
	data := s.pm.Data()
	for i := 0; i+3 < len(data); i += 4 {
		if IsBackground(data[i], data[i+1], data[i+2], p) {
			data[i+3] = p.ResidualAlpha
		}
	}
}

// drawBehindLocked composites bg underneath the current contents
// (destination-over). Opaque pixels are left untouched.
// Caller must hold s.mu in write mode.
func (s *Surface) drawBehindLocked(bg gg.RGBA) {
	bgA := clampUnit(bg.A)
	if bgA == 0 {
		return
	}
	bgR, bgG, bgB := clampUnit(bg.R)*255, clampUnit(bg.G)*255, clampUnit(bg.B)*255

	data := s.pm.Data()
	for i := 0; i+3 < len(data); i += 4 {
		a8 := data[i+3]
		if a8 == 255 {
			continue
		}
		a := float64(a8) / 255
		under := bgA * (1 - a)
		outA := a + under
		data[i+0] = roundUint8((float64(data[i+0])*a + bgR*under) / outA)
		data[i+1] = roundUint8((float64(data[i+1])*a + bgG*under) / outA)
		data[i+2] = roundUint8((float64(data[i+2])*a + bgB*under) / outA)
		data[i+3] = roundUint8(outA * 255)
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func roundUint8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
