// Package config holds the user-facing captcha options, validates them and
// resolves the randomized defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"math/rand"
	"strings"

	"github.com/jessevdk/go-flags"

	"github.com/malcolmseyd/captcha/imageproc"
)

const (
	maxKeyLength = 32
	MaxWidth     = 1000
	MaxHeight    = 1000
)

// Error reports an option with an unusable value.
type Error struct {
	Param   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Param, e.Message)
}

// Options are shared by every binary; the tags drive go-flags.
type Options struct {
	Width         int    `long:"width" env:"CAPTCHA_WIDTH" default:"100" description:"image width in pixels"`
	Height        int    `long:"height" env:"CAPTCHA_HEIGHT" default:"50" description:"image height in pixels"`
	KeyLength     int    `long:"keylength" env:"CAPTCHA_KEY_LENGTH" default:"0" description:"key length, 0 picks 5 or 6"`
	Foreground    Color  `long:"foreground" env:"CAPTCHA_FOREGROUND" description:"text color as #RRGGBB"`
	Background    Color  `long:"background" env:"CAPTCHA_BACKGROUND" description:"background color as #RRGGBB"`
	Overlay       bool   `long:"overlay" env:"CAPTCHA_OVERLAY" description:"squeeze glyphs together"`
	OverlayPixels int    `long:"overlaypixels" env:"CAPTCHA_OVERLAY_PIXELS" default:"0" description:"extra overlap in pixels"`
	Waves         bool   `long:"waves" env:"CAPTCHA_WAVES" description:"apply the waves distortion"`
	Font          string `long:"font" env:"CAPTCHA_FONTS" description:"font asset file or directory of *.font.png"`
	Format        string `long:"format" env:"CAPTCHA_FORMAT" default:"png" description:"png, jpeg, gif or bmp"`
	Threshold     uint8  `long:"threshold" env:"CAPTCHA_INK_THRESHOLD" default:"128" description:"darkness at which an atlas pixel counts as ink"`
}

// Default returns the options go-flags would produce with no arguments.
func Default() Options {
	return Options{Width: 100, Height: 50, Format: string(imageproc.FormatPNG), Threshold: imageproc.DefaultInkThreshold}
}

// Settings are validated options with every random default resolved.
type Settings struct {
	Width         int
	Height        int
	KeyLength     int
	Foreground    color.RGBA
	Background    color.RGBA
	Overlay       bool
	OverlayPixels int
	Waves         bool
	Format        imageproc.Format
	Threshold     uint8 // overrides the font's ink threshold when non-zero
}

func (o *Options) Validate() error {
	if o.Width <= 0 || o.Width > MaxWidth {
		return &Error{Param: "width", Message: fmt.Sprintf("must be between 1 and %d", MaxWidth)}
	}
	if o.Height <= 0 || o.Height > MaxHeight {
		return &Error{Param: "height", Message: fmt.Sprintf("must be between 1 and %d", MaxHeight)}
	}
	if o.KeyLength < 0 || o.KeyLength > maxKeyLength {
		return &Error{Param: "keylength", Message: fmt.Sprintf("must be between 0 and %d", maxKeyLength)}
	}
	if o.OverlayPixels < 0 {
		return &Error{Param: "overlaypixels", Message: "must not be negative"}
	}
	if o.Threshold == 0 {
		return &Error{Param: "threshold", Message: "must be positive"}
	}
	if _, err := imageproc.ParseFormat(o.Format); err != nil {
		return &Error{Param: "format", Message: err.Error()}
	}
	return nil
}

// Resolve validates o and fills in the key length and any missing color.
func (o *Options) Resolve(rng *rand.Rand) (Settings, error) {
	if err := o.Validate(); err != nil {
		return Settings{}, err
	}
	format, _ := imageproc.ParseFormat(o.Format)

	s := Settings{
		Width:         o.Width,
		Height:        o.Height,
		KeyLength:     o.KeyLength,
		Overlay:       o.Overlay,
		OverlayPixels: o.OverlayPixels,
		Waves:         o.Waves,
		Format:        format,
		Threshold:     o.Threshold,
	}
	if s.KeyLength == 0 {
		s.KeyLength = 5 + rng.Intn(2)
	}

	switch {
	case o.Foreground.Set && o.Background.Set:
		s.Foreground, s.Background = o.Foreground.Value, o.Background.Value
	case o.Foreground.Set:
		s.Foreground = o.Foreground.Value
		s.Background = DeriveColor(s.Foreground, rng)
	case o.Background.Set:
		s.Background = o.Background.Value
		s.Foreground = DeriveColor(s.Background, rng)
	default:
		s.Foreground = color.RGBA{
			R: uint8(0x20 + rng.Intn(0x20)),
			G: uint8(0x20 + rng.Intn(0x20)),
			B: uint8(0x20 + rng.Intn(0x20)),
			A: 255,
		}
		s.Background = DeriveColor(s.Foreground, rng)
	}
	return s, nil
}

// DeriveColor returns a color contrasting with base: each channel moves
// 0x80 to 0x9f away, towards black for light bases and towards white for
// dark ones.
func DeriveColor(base color.RGBA, rng *rand.Rand) color.RGBA {
	delta := [3]int{0x80 + rng.Intn(0x20), 0x80 + rng.Intn(0x20), 0x80 + rng.Intn(0x20)}
	if lightness(base) > 0.5 {
		for i := range delta {
			delta[i] = -delta[i]
		}
	}
	return color.RGBA{
		R: clampChannel(int(base.R) + delta[0]),
		G: clampChannel(int(base.G) + delta[1]),
		B: clampChannel(int(base.B) + delta[2]),
		A: 255,
	}
}

// lightness is the HSL lightness of c in [0, 1].
func lightness(c color.RGBA) float64 {
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	return (float64(hi) + float64(lo)) / 2 / 255
}

func clampChannel(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Color is an opaque RGB color given as #RRGGBB. Set is false until a value
// has been parsed.
type Color struct {
	Value color.RGBA
	Set   bool
}

var (
	_ flags.Unmarshaler = (*Color)(nil)
	_ flags.Marshaler   = Color{}
)

func ParseColor(s string) (Color, error) {
	var c Color
	err := c.UnmarshalFlag(s)
	return c, err
}

func (c *Color) UnmarshalFlag(value string) error {
	v := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(v) != 6 {
		return &Error{Param: "color", Message: fmt.Sprintf("%q is not #RRGGBB", value)}
	}
	rgb, err := hex.DecodeString(v)
	if err != nil {
		return &Error{Param: "color", Message: fmt.Sprintf("%q is not #RRGGBB", value)}
	}
	c.Value = color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	c.Set = true
	return nil
}

func (c Color) MarshalFlag() (string, error) {
	if !c.Set {
		return "", nil
	}
	return fmt.Sprintf("#%02x%02x%02x", c.Value.R, c.Value.G, c.Value.B), nil
}
