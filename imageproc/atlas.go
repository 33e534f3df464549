package imageproc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// BuildAtlas draws every rune of alphabet black on white into a single
// strip, leaving gap blank columns between glyphs, and reports where each
// glyph landed.
func BuildAtlas(face font.Face, alphabet string, gap int) (*image.NRGBA, []GlyphBounds, error) {
	if gap < 0 {
		return nil, nil, fmt.Errorf("negative glyph gap %d", gap)
	}
	type cell struct {
		r     rune
		left  int
		width int
	}

	cells := make([]cell, 0, len(alphabet))
	total := 0
	for _, r := range alphabet {
		bounds, advance, ok := face.GlyphBounds(r)
		if !ok {
			return nil, nil, fmt.Errorf("face has no glyph for %q", r)
		}
		left, right := bounds.Min.X.Floor(), bounds.Max.X.Ceil()
		if right <= left {
			// blank glyph such as a space; keep its advance
			left, right = 0, advance.Ceil()
		}
		if right <= left {
			right = left + 1
		}
		if len(cells) > 0 {
			total += gap
		}
		cells = append(cells, cell{r: r, left: left, width: right - left})
		total += right - left
	}
	if len(cells) == 0 {
		return nil, nil, fmt.Errorf("empty alphabet")
	}

	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()

	atlas := image.NewNRGBA(image.Rect(0, 0, total, height))
	draw.Draw(atlas, atlas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  atlas,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	glyphs := make([]GlyphBounds, 0, len(cells))
	x := 0
	for _, c := range cells {
		drawer.Dot = fixed.P(x-c.left, ascent)
		drawer.DrawString(string(c.r))
		glyphs = append(glyphs, GlyphBounds{Glyph: c.r, Start: x, End: x + c.width - 1})
		x += c.width + gap
	}
	return atlas, glyphs, nil
}

// WriteFontPNG encodes atlas as a PNG carrying glyphs in its metadata
// chunk, which DecodeFont reads back.
func WriteFontPNG(w io.Writer, atlas image.Image, glyphs []GlyphBounds) error {
	text, err := EncodeFontMeta(glyphs)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, atlas); err != nil {
		return fmt.Errorf("can't encode atlas: %w", err)
	}
	raw := buf.Bytes()
	// the encoder always finishes with an empty IEND chunk
	const iendSize = 12
	if len(raw) < len(pngSignature)+iendSize {
		return fmt.Errorf("png encoder produced %d bytes", len(raw))
	}
	cut := len(raw) - iendSize

	payload := make([]byte, 0, len(FontMetaKeyword)+5+len(text))
	payload = append(payload, FontMetaKeyword...)
	payload = append(payload, 0, 0, 0) // terminator, uncompressed, method
	payload = append(payload, 0)       // empty language tag
	payload = append(payload, 0)       // empty translated keyword
	payload = append(payload, text...)

	if _, err := w.Write(raw[:cut]); err != nil {
		return err
	}
	if err := writeChunk(w, chunkITXt, payload); err != nil {
		return err
	}
	_, err = w.Write(raw[cut:])
	return err
}

func writeChunk(w io.Writer, typ [4]byte, data []byte) error {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(data)))
	copy(head[4:], typ[:])

	crc := crc32.NewIEEE()
	crc.Write(typ[:])
	crc.Write(data)
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], crc.Sum32())

	for _, b := range [][]byte{head[:], data, tail[:]} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
