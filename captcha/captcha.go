// Package captcha ties key generation and rendering together.
package captcha

import (
	"fmt"
	"image"
	"math/rand"

	"github.com/malcolmseyd/captcha/imageproc"
	"github.com/malcolmseyd/captcha/internal/config"
	"github.com/malcolmseyd/captcha/keygen"
)

// Captcha is a rendered challenge and its answer.
type Captcha struct {
	Key   string
	Image *image.RGBA
}

// Generate loads a font from fonts and renders a fresh captcha with it.
func Generate(s config.Settings, fonts imageproc.FontLoader, rng *rand.Rand) (*Captcha, error) {
	font, err := fonts.LoadFont()
	if err != nil {
		return nil, fmt.Errorf("can't load font: %w", err)
	}
	return New(s, font, rng)
}

// New draws a fresh key over font's alphabet and renders it. rng is used
// for every random choice, so a fixed seed reproduces the same captcha.
func New(s config.Settings, font *imageproc.FontAsset, rng *rand.Rand) (*Captcha, error) {
	gen := &keygen.Generator{
		Alphabet: font.Alphabet(),
		Length:   s.KeyLength,
		Rand:     rng,
	}
	key, err := gen.Generate()
	if err != nil {
		return nil, err
	}
	img, err := Render(s, font, key, rng)
	if err != nil {
		return nil, err
	}
	return &Captcha{Key: key, Image: img}, nil
}

// Render draws key with font according to s.
func Render(s config.Settings, font *imageproc.FontAsset, key string, rng *rand.Rand) (*image.RGBA, error) {
	p := NewPipeline(s, font, rng)
	img, err := p.Render(key)
	if err != nil {
		return nil, fmt.Errorf("can't render key: %w", err)
	}
	return img, nil
}

// NewPipeline builds the compositor and, if enabled, the waves filter.
func NewPipeline(s config.Settings, font *imageproc.FontAsset, rng *rand.Rand) *imageproc.Pipeline {
	if s.Threshold != 0 && s.Threshold != font.Threshold() {
		font = font.WithThreshold(s.Threshold)
	}
	p := &imageproc.Pipeline{
		Width:      s.Width,
		Height:     s.Height,
		Background: s.Background,
		Printer: &imageproc.Compositor{
			Font:          font,
			Color:         s.Foreground,
			Overlay:       s.Overlay,
			OverlayPixels: s.OverlayPixels,
			Rand:          rng,
		},
	}
	if s.Waves {
		p.Filters = append(p.Filters, imageproc.DefaultWaves(rng))
	}
	return p
}
