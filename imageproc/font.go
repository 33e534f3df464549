package imageproc

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultAlphabet leaves out glyphs that are easily confused with one
// another (0/o, 1/l/i, 9/g, j).
const DefaultAlphabet = "abcdefhkmnpqrstuvwxyz2345678"

const (
	defaultFontSize = 30
	defaultFontDPI  = 72
)

// NewFace parses an OpenType or TrueType font and returns a face of the
// given size.
func NewFace(ttf []byte, size, dpi float64) (font.Face, error) {
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("can't parse font: %w", err)
	}
	return opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: size, DPI: dpi, Hinting: font.HintingFull,
	})
}

var defaultFont struct {
	once  sync.Once
	asset *FontAsset
	png   []byte
	err   error
}

// DefaultFontPNG returns the built-in atlas: Go Regular rendered over
// DefaultAlphabet.
func DefaultFontPNG() ([]byte, error) {
	loadDefaultFont()
	return defaultFont.png, defaultFont.err
}

// DefaultFont returns the decoded built-in atlas.
func DefaultFont() (*FontAsset, error) {
	loadDefaultFont()
	return defaultFont.asset, defaultFont.err
}

func loadDefaultFont() {
	defaultFont.once.Do(func() {
		face, err := NewFace(goregular.TTF, defaultFontSize, defaultFontDPI)
		if err != nil {
			defaultFont.err = err
			return
		}
		defer face.Close()

		atlas, glyphs, err := BuildAtlas(face, DefaultAlphabet, 1)
		if err != nil {
			defaultFont.err = fmt.Errorf("can't build default atlas: %w", err)
			return
		}
		var buf bytes.Buffer
		if err := WriteFontPNG(&buf, atlas, glyphs); err != nil {
			defaultFont.err = err
			return
		}
		defaultFont.png = buf.Bytes()
		defaultFont.asset, defaultFont.err = ParseFont(defaultFont.png)
	})
}
