package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"
)

// newTestAtlas returns a white strip.
func newTestAtlas(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// inkColumn paints column x black on every row.
func inkColumn(img *image.NRGBA, x int) {
	for y := 0; y < img.Rect.Dy(); y++ {
		img.SetNRGBA(x, y, color.NRGBA{A: 255})
	}
}

func encodeTestFont(t testing.TB, atlas image.Image, glyphs []GlyphBounds) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteFontPNG(&buf, atlas, glyphs); err != nil {
		t.Fatalf("WriteFontPNG failed: %v", err)
	}
	return buf.Bytes()
}

func mustFont(t testing.TB, atlas image.Image, glyphs []GlyphBounds) *FontAsset {
	t.Helper()
	f, err := ParseFont(encodeTestFont(t, atlas, glyphs))
	if err != nil {
		t.Fatalf("ParseFont failed: %v", err)
	}
	return f
}

// barFont has two glyphs of height 4: 'a' with ink in its last column and
// 'b' with ink in its first column, plus an inkless 'e'.
func barFont(t testing.TB) *FontAsset {
	atlas := newTestAtlas(17, 4)
	inkColumn(atlas, 4)
	inkColumn(atlas, 6)
	glyphs := []GlyphBounds{
		{Glyph: 'a', Start: 0, End: 4},
		{Glyph: 'b', Start: 6, End: 10},
		{Glyph: 'e', Start: 12, End: 16},
	}
	return mustFont(t, atlas, glyphs)
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}
