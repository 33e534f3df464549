package imageproc

import (
	"image"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// Wave is one sine term of a displacement field.
type Wave struct {
	Period    float64
	Amplitude float64
	Phase     float64
}

// WavesFilter resamples an image through two displacement fields: X waves
// shift pixels horizontally as a function of the row, Y waves shift them
// vertically as a function of the column.
type WavesFilter struct {
	X []Wave
	Y []Wave
}

// DefaultWaves returns one broad horizontal wave and two superposed
// vertical waves with random phases and amplitudes.
func DefaultWaves(rng *rand.Rand) *WavesFilter {
	return &WavesFilter{
		X: []Wave{
			{Period: 0.15, Amplitude: 2, Phase: randomPhase(rng)},
		},
		Y: []Wave{
			{Period: 0.04, Amplitude: float64(6 + rng.Intn(2)), Phase: randomPhase(rng)},
			{Period: 0.1, Amplitude: float64(2 + rng.Intn(2)), Phase: randomPhase(rng)},
		},
	}
}

// randomPhase is in [0, 2π) with a resolution of 0.01.
func randomPhase(rng *rand.Rand) float64 {
	return float64(rng.Intn(628)) / 100
}

func displacement(n int, waves []Wave) float64 {
	sum := 0.0
	for _, w := range waves {
		sum += w.Amplitude * math.Sin(w.Period*float64(n)+w.Phase)
	}
	return sum
}

// Apply distorts img in place and returns it. Samples are always read from
// a copy of the original pixels.
func (f *WavesFilter) Apply(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}
	src := &image.RGBA{
		Pix:    append([]uint8(nil), img.Pix...),
		Stride: img.Stride,
		Rect:   img.Rect,
	}

	// dx depends only on the row and dy only on the column
	dx := make([]float64, h)
	for y := range dx {
		dx[y] = displacement(y, f.X)
	}
	dy := make([]float64, w)
	for x := range dy {
		dy[x] = displacement(x, f.Y)
	}

	bands := runtime.GOMAXPROCS(0)
	if bands > h {
		bands = h
	}
	rows := (h + bands - 1) / bands
	var wg sync.WaitGroup
	for y0 := 0; y0 < h; y0 += rows {
		y1 := min(y0+rows, h)
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := 0; x < w; x++ {
					r, g, bl := sampleBilinear(src, w, h, float64(x)+dx[y], float64(y)+dy[x])
					i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
					img.Pix[i+0] = r
					img.Pix[i+1] = g
					img.Pix[i+2] = bl
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	Logger().Debug("applied waves", "x_waves", len(f.X), "y_waves", len(f.Y), "bands", bands)
	return img
}

// sampleBilinear reads src at a fractional position. Coordinates are
// floored, not truncated toward zero, so positions left of or above the
// image repeat the edge pixel instead of extrapolating past it.
func sampleBilinear(src *image.RGBA, w, h int, fx, fy float64) (r, g, b uint8) {
	x0f, y0f := math.Floor(fx), math.Floor(fy)
	tx, ty := fx-x0f, fy-y0f
	x0, y0 := int(x0f), int(y0f)
	x1, y1 := x0+1, y0+1

	x0 = clamp(x0, 0, w-1)
	y0 = clamp(y0, 0, h-1)
	x1 = clamp(x1, 0, w-1)
	y1 = clamp(y1, 0, h-1)

	o := src.Rect.Min
	p00 := src.PixOffset(o.X+x0, o.Y+y0)
	p10 := src.PixOffset(o.X+x1, o.Y+y0)
	p01 := src.PixOffset(o.X+x0, o.Y+y1)
	p11 := src.PixOffset(o.X+x1, o.Y+y1)

	var out [3]uint8
	for ch := 0; ch < 3; ch++ {
		v := lerp2D(
			float64(src.Pix[p00+ch]), float64(src.Pix[p10+ch]),
			float64(src.Pix[p01+ch]), float64(src.Pix[p11+ch]),
			tx, ty,
		)
		out[ch] = uint8(clampFloat(v, 0, 255))
	}
	return out[0], out[1], out[2]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lerp is written as a+(b-a)*t so equal endpoints come back exactly.
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerp2D(v00, v10, v01, v11, tx, ty float64) float64 {
	return lerp(lerp(v00, v10, tx), lerp(v01, v11, tx), ty)
}
