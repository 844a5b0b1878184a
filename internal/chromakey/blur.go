package chromakey

import (
	"math"
	"sync"
)

// gaussianKernel returns a normalized 1D Gaussian kernel with sigma = radius
// and 2*ceil(3*radius)+1 taps.
func gaussianKernel(radius float64) []float32 {
	if !(radius > 0) {
		return []float32{1}
	}
	half := int(math.Ceil(radius * 3))
	kernel := make([]float32, half*2+1)
	twoSigmaSq := 2 * radius * radius

	var sum float64
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}
	return kernel
}

// maxCachedKernels bounds the kernel cache. Radii usually come from a handful
// of configured values, but one-shot requests may name any radius.
const maxCachedKernels = 32

// kernelCache keeps computed kernels keyed by radius. When full, half of the
// entries are evicted before a new one is stored.
type kernelCache struct {
	mu      sync.RWMutex
	kernels map[float64][]float32
	maxLen  int
}

func newKernelCache(maxLen int) *kernelCache {
	return &kernelCache{kernels: make(map[float64][]float32), maxLen: maxLen}
}

func (c *kernelCache) get(radius float64) []float32 {
	c.mu.RLock()
	k, ok := c.kernels[radius]
	c.mu.RUnlock()
	if ok {
		return k
	}

	k = gaussianKernel(radius)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.kernels) >= c.maxLen {
		evict := c.maxLen / 2
		for r := range c.kernels {
			if evict <= 0 {
				break
			}
			delete(c.kernels, r)
			evict--
		}
	}
	c.kernels[radius] = k
	return k
}

func (c *kernelCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kernels)
}

var kernels = newKernelCache(maxCachedKernels)

// blurLocked applies a separable Gaussian blur of the given radius to the whole
// surface. Colour is convolved premultiplied so fully transparent pixels do
// not bleed their hidden colour into the edge. Samples outside the surface
// clamp to the nearest edge pixel. Radii above MaxSoftenRadius are clamped.
// Caller must hold s.mu in write mode.
func (s *Surface) blurLocked(radius float64) {
	w, h := s.pm.Width(), s.pm.Height()
	if !(radius > 0) || w == 0 || h == 0 {
		return
	}
	radius = math.Min(radius, MaxSoftenRadius)
	kernel := kernels.get(radius)
	half := len(kernel) / 2
	data := s.pm.Data()

	pre := make([]float32, len(data))
	for i := 0; i+3 < len(data); i += 4 {
		a := float32(data[i+3]) / 255
		pre[i+0] = float32(data[i+0]) * a
		pre[i+1] = float32(data[i+1]) * a
		pre[i+2] = float32(data[i+2]) * a
		pre[i+3] = float32(data[i+3])
	}

	tmp := make([]float32, len(data))
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var r, g, b, a float32
			for k, weight := range kernel {
				kx := clampIndex(x+k-half, w)
				j := (row + kx) * 4
				r += pre[j+0] * weight
				g += pre[j+1] * weight
				b += pre[j+2] * weight
				a += pre[j+3] * weight
			}
			j := (row + x) * 4
			tmp[j+0], tmp[j+1], tmp[j+2], tmp[j+3] = r, g, b, a
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b, a float32
			for k, weight := range kernel {
				ky := clampIndex(y+k-half, h)
				j := (ky*w + x) * 4
				r += tmp[j+0] * weight
				g += tmp[j+1] * weight
				b += tmp[j+2] * weight
				a += tmp[j+3] * weight
			}
			j := (y*w + x) * 4
			if a <= 0 {
				data[j+0], data[j+1], data[j+2], data[j+3] = 0, 0, 0, 0
				continue
			}
			inv := 255 / a
			data[j+0] = roundUint8(float64(r * inv))
			data[j+1] = roundUint8(float64(g * inv))
			data[j+2] = roundUint8(float64(b * inv))
			data[j+3] = roundUint8(float64(a))
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
