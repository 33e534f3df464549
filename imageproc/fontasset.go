package imageproc

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FontMetaKeyword is the iTXt keyword under which glyph bounds are stored.
const FontMetaKeyword = "NCaptcha.FontMeta"

// DefaultInkThreshold is the darkness at which an atlas pixel counts as ink.
const DefaultInkThreshold = 128

var (
	pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}
	chunkITXt    = [4]byte{'i', 'T', 'X', 't'}
	chunkIEND    = [4]byte{'I', 'E', 'N', 'D'}
)

// FormatError reports a font asset that can't be decoded.
type FormatError struct {
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return "font asset: " + e.Msg + ": " + e.Err.Error()
	}
	return "font asset: " + e.Msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatErr(msg string, err error) error {
	return &FormatError{Msg: msg, Err: err}
}

// GlyphBounds is the inclusive column span of one glyph in the atlas.
type GlyphBounds struct {
	Glyph rune
	Start int
	End   int
}

// Width returns the number of columns covered by the glyph.
func (b GlyphBounds) Width() int {
	return b.End - b.Start + 1
}

// FontAsset is a decoded glyph atlas. It is immutable once loaded and safe
// for concurrent use by any number of renders.
type FontAsset struct {
	darkness  *image.Alpha
	glyphs    []GlyphBounds
	index     map[rune]int
	threshold uint8
}

// ParseFont decodes a font asset held in memory.
func ParseFont(data []byte) (*FontAsset, error) {
	return DecodeFont(bytes.NewReader(data))
}

// DecodeFont reads the glyph metadata from r, then rewinds it and decodes
// the atlas raster.
func DecodeFont(r io.ReadSeeker) (*FontAsset, error) {
	meta, err := readFontMeta(r)
	if err != nil {
		return nil, err
	}
	glyphs, err := DecodeFontMeta(meta)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("can't rewind font asset: %w", err)
	}
	atlas, err := png.Decode(r)
	if err != nil {
		return nil, formatErr("can't decode atlas", err)
	}
	return NewFontAsset(atlas, glyphs)
}

// NewFontAsset validates glyph bounds against atlas and builds the asset.
func NewFontAsset(atlas image.Image, glyphs []GlyphBounds) (*FontAsset, error) {
	if len(glyphs) == 0 {
		return nil, formatErr("metadata declares no glyphs", nil)
	}
	b := atlas.Bounds()
	index := make(map[rune]int, len(glyphs))
	prevEnd := -1
	for i, g := range glyphs {
		if _, dup := index[g.Glyph]; dup {
			return nil, formatErr(fmt.Sprintf("glyph %q declared twice", g.Glyph), nil)
		}
		if g.Start > g.End {
			return nil, formatErr(fmt.Sprintf("glyph %q has empty bounds [%d,%d]", g.Glyph, g.Start, g.End), nil)
		}
		if g.Start <= prevEnd {
			return nil, formatErr(fmt.Sprintf("glyph %q overlaps its predecessor", g.Glyph), nil)
		}
		if g.End >= b.Dx() {
			return nil, formatErr(fmt.Sprintf("glyph %q ends past atlas width %d", g.Glyph, b.Dx()), nil)
		}
		index[g.Glyph] = i
		prevEnd = g.End
	}

	// darkness = 255 - red, sampled once so rendering never touches the
	// color model again
	darkness := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(atlas.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			darkness.Pix[y*darkness.Stride+x] = 255 - c.R
		}
	}

	return &FontAsset{
		darkness:  darkness,
		glyphs:    append([]GlyphBounds(nil), glyphs...),
		index:     index,
		threshold: DefaultInkThreshold,
	}, nil
}

// Alphabet returns the supported glyphs in declaration order.
func (f *FontAsset) Alphabet() []rune {
	alphabet := make([]rune, len(f.glyphs))
	for i, g := range f.glyphs {
		alphabet[i] = g.Glyph
	}
	return alphabet
}

// Glyphs returns a copy of every glyph's bounds in declaration order.
func (f *FontAsset) Glyphs() []GlyphBounds {
	return append([]GlyphBounds(nil), f.glyphs...)
}

func (f *FontAsset) Bounds(r rune) (GlyphBounds, bool) {
	i, ok := f.index[r]
	if !ok {
		return GlyphBounds{}, false
	}
	return f.glyphs[i], true
}

// Height is the atlas strip height in pixels.
func (f *FontAsset) Height() int { return f.darkness.Rect.Dy() }

func (f *FontAsset) Threshold() uint8 { return f.threshold }

// WithThreshold returns a copy of f using a different ink threshold.
func (f *FontAsset) WithThreshold(t uint8) *FontAsset {
	cp := *f
	cp.threshold = t
	return &cp
}

// Darkness returns 255 minus the red channel of the atlas pixel at (x, y).
func (f *FontAsset) Darkness(x, y int) uint8 {
	return f.darkness.Pix[y*f.darkness.Stride+x]
}

func (f *FontAsset) isInk(x, y int) bool {
	return f.Darkness(x, y) >= f.threshold
}

// readFontMeta walks the PNG chunk list and returns the text of the first
// iTXt chunk carrying FontMetaKeyword.
func readFontMeta(r io.Reader) ([]byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, formatErr("can't read signature", err)
	}
	if !bytes.Equal(header[:], pngSignature) {
		return nil, formatErr("not a png image", nil)
	}

	var head [8]byte
	for {
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return nil, formatErr("truncated chunk header", noEOF(err))
		}
		length := binary.BigEndian.Uint32(head[:4])
		var typ [4]byte
		copy(typ[:], head[4:])

		switch typ {
		case chunkIEND:
			return nil, formatErr("metadata chunk not found", nil)
		case chunkITXt:
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, formatErr("truncated iTXt chunk", noEOF(err))
			}
			if err := skip(r, 4); err != nil {
				return nil, formatErr("truncated iTXt chunk", err)
			}
			text, ok, err := parseITXt(data)
			if err != nil {
				return nil, err
			}
			if ok {
				return text, nil
			}
		default:
			if err := skip(r, int64(length)+4); err != nil {
				return nil, formatErr(fmt.Sprintf("truncated %s chunk", typ[:]), err)
			}
		}
	}
}

// parseITXt splits an iTXt payload:
//
//	keyword 0 flag method language 0 translated 0 text
//
// ok is false when the keyword belongs to some other metadata.
func parseITXt(data []byte) (text []byte, ok bool, err error) {
	null1, null2, null3 := -1, -1, -1
	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			continue
		}
		switch {
		case null1 < 0:
			null1 = i
			i += 2 // compression flag and method
		case null2 < 0:
			null2 = i
		default:
			null3 = i
		}
		if null3 >= 0 {
			break
		}
	}
	if null1 < 0 {
		return nil, false, formatErr("iTXt chunk without keyword terminator", nil)
	}

	keyword, err := charmap.ISO8859_1.NewDecoder().Bytes(data[:null1])
	if err != nil {
		return nil, false, formatErr("can't decode iTXt keyword", err)
	}
	if string(keyword) != FontMetaKeyword {
		return nil, false, nil
	}
	if null3 < 0 {
		return nil, false, formatErr("truncated iTXt header", nil)
	}

	text = data[null3+1:]
	if data[null1+1] == 1 {
		if data[null1+2] != 0 {
			return nil, false, formatErr(fmt.Sprintf("unknown compression method %d", data[null1+2]), nil)
		}
		zr, err := zlib.NewReader(bytes.NewReader(text))
		if err != nil {
			return nil, false, formatErr("can't inflate metadata", err)
		}
		defer zr.Close()
		text, err = io.ReadAll(zr)
		if err != nil {
			return nil, false, formatErr("can't inflate metadata", err)
		}
	}
	return text, true, nil
}

// DecodeFontMeta reads (glyph, start, end) rune triplets.
func DecodeFontMeta(text []byte) ([]GlyphBounds, error) {
	if !utf8.Valid(text) {
		return nil, formatErr("metadata is not valid utf-8", nil)
	}
	runes := []rune(string(text))
	if len(runes) == 0 {
		return nil, formatErr("metadata is empty", nil)
	}
	if len(runes)%3 != 0 {
		return nil, formatErr(fmt.Sprintf("metadata has %d code points, want a multiple of 3", len(runes)), nil)
	}

	glyphs := make([]GlyphBounds, 0, len(runes)/3)
	for i := 0; i < len(runes); i += 3 {
		glyphs = append(glyphs, GlyphBounds{
			Glyph: runes[i],
			Start: int(runes[i+1]),
			End:   int(runes[i+2]),
		})
	}
	return glyphs, nil
}

// EncodeFontMeta is the inverse of DecodeFontMeta.
func EncodeFontMeta(glyphs []GlyphBounds) ([]byte, error) {
	var buf bytes.Buffer
	for _, g := range glyphs {
		for _, v := range []int{int(g.Glyph), g.Start, g.End} {
			r := rune(v)
			if v < 0 || !utf8.ValidRune(r) {
				return nil, fmt.Errorf("glyph %q: %d is not encodable as a code point", g.Glyph, v)
			}
			buf.WriteRune(r)
		}
	}
	return buf.Bytes(), nil
}

func skip(r io.Reader, n int64) error {
	if s, ok := r.(io.Seeker); ok {
		_, err := s.Seek(n, io.SeekCurrent)
		return err
	}
	_, err := io.CopyN(io.Discard, r, n)
	return noEOF(err)
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
