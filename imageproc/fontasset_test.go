package imageproc

import (
	"bytes"
	"compress/zlib"
	"errors"
	"image/png"
	"reflect"
	"testing"
)

var threeGlyphs = []GlyphBounds{
	{Glyph: 'a', Start: 0, End: 9},
	{Glyph: 'b', Start: 11, End: 19},
	{Glyph: 'c', Start: 21, End: 30},
}

func TestParseFontBounds(t *testing.T) {
	f := mustFont(t, newTestAtlas(31, 8), threeGlyphs)

	if got := f.Glyphs(); !reflect.DeepEqual(got, threeGlyphs) {
		t.Errorf("Glyphs() = %v, want %v", got, threeGlyphs)
	}
	if got, want := string(f.Alphabet()), "abc"; got != want {
		t.Errorf("Alphabet() = %q, want %q", got, want)
	}
	if _, ok := f.Bounds('d'); ok {
		t.Error("Bounds('d') reported a glyph that was never declared")
	}
	if f.Height() != 8 {
		t.Errorf("Height() = %d, want 8", f.Height())
	}
	if f.Threshold() != DefaultInkThreshold {
		t.Errorf("Threshold() = %d, want %d", f.Threshold(), DefaultInkThreshold)
	}
}

func TestFontMetaRoundTrip(t *testing.T) {
	f := mustFont(t, newTestAtlas(31, 8), threeGlyphs)

	text, err := EncodeFontMeta(f.Glyphs())
	if err != nil {
		t.Fatalf("EncodeFontMeta failed: %v", err)
	}
	again, err := DecodeFontMeta(text)
	if err != nil {
		t.Fatalf("DecodeFontMeta failed: %v", err)
	}
	if !reflect.DeepEqual(again, threeGlyphs) {
		t.Errorf("round trip = %v, want %v", again, threeGlyphs)
	}
}

func TestDarkness(t *testing.T) {
	atlas := newTestAtlas(3, 2)
	inkColumn(atlas, 1)
	f := mustFont(t, atlas, []GlyphBounds{{Glyph: 'x', Start: 0, End: 2}})

	if d := f.Darkness(0, 0); d != 0 {
		t.Errorf("Darkness on white = %d, want 0", d)
	}
	if d := f.Darkness(1, 1); d != 255 {
		t.Errorf("Darkness on black = %d, want 255", d)
	}
	if !f.isInk(1, 0) || f.isInk(2, 0) {
		t.Error("isInk disagrees with the painted column")
	}
	if lenient := f.WithThreshold(0); !lenient.isInk(2, 0) || f.Threshold() != DefaultInkThreshold {
		t.Error("WithThreshold should return an independent copy")
	}
}

// itxt builds a raw iTXt chunk payload.
func itxt(keyword string, compressed bool, text []byte) []byte {
	var b bytes.Buffer
	b.WriteString(keyword)
	b.WriteByte(0)
	if compressed {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
	b.WriteByte(0)
	b.WriteString("en")
	b.WriteByte(0)
	b.WriteString("meta")
	b.WriteByte(0)
	b.Write(text)
	return b.Bytes()
}

// withChunks re-encodes atlas with extra chunks placed before IEND.
func withChunks(t *testing.T, chunks ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, newTestAtlas(31, 8)); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	cut := len(raw) - 12
	var out bytes.Buffer
	out.Write(raw[:cut])
	for _, c := range chunks {
		if err := writeChunk(&out, chunkITXt, c); err != nil {
			t.Fatal(err)
		}
	}
	out.Write(raw[cut:])
	return out.Bytes()
}

func TestParseFontChunks(t *testing.T) {
	meta, err := EncodeFontMeta(threeGlyphs)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("skips foreign keywords", func(t *testing.T) {
		data := withChunks(t, itxt("Comment", false, []byte("hello")), itxt(FontMetaKeyword, false, meta))
		f, err := ParseFont(data)
		if err != nil {
			t.Fatalf("ParseFont failed: %v", err)
		}
		if !reflect.DeepEqual(f.Glyphs(), threeGlyphs) {
			t.Errorf("Glyphs() = %v", f.Glyphs())
		}
	})

	t.Run("compressed text", func(t *testing.T) {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		zw.Write(meta)
		zw.Close()
		f, err := ParseFont(withChunks(t, itxt(FontMetaKeyword, true, z.Bytes())))
		if err != nil {
			t.Fatalf("ParseFont failed: %v", err)
		}
		if !reflect.DeepEqual(f.Glyphs(), threeGlyphs) {
			t.Errorf("Glyphs() = %v", f.Glyphs())
		}
	})
}

func TestParseFontErrors(t *testing.T) {
	valid := encodeTestFont(t, newTestAtlas(31, 8), threeGlyphs)
	overlapping, _ := EncodeFontMeta([]GlyphBounds{{Glyph: 'a', Start: 0, End: 9}, {Glyph: 'b', Start: 9, End: 12}})
	duplicate, _ := EncodeFontMeta([]GlyphBounds{{Glyph: 'a', Start: 0, End: 3}, {Glyph: 'a', Start: 5, End: 9}})
	outside, _ := EncodeFontMeta([]GlyphBounds{{Glyph: 'a', Start: 0, End: 31}})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad signature", append([]byte("GIF89a.."), valid[8:]...)},
		{"truncated", valid[:40]},
		{"no metadata", withChunks(t)},
		{"foreign metadata only", withChunks(t, itxt("Comment", false, []byte("abc")))},
		{"partial triplet", withChunks(t, itxt(FontMetaKeyword, false, []byte("ab")))},
		{"overlapping bounds", withChunks(t, itxt(FontMetaKeyword, false, overlapping))},
		{"duplicate glyph", withChunks(t, itxt(FontMetaKeyword, false, duplicate))},
		{"bounds past atlas", withChunks(t, itxt(FontMetaKeyword, false, outside))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFont(tt.data)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("ParseFont error = %v, want *FormatError", err)
			}
		})
	}
}

func TestEncodeFontMetaRejectsNegative(t *testing.T) {
	if _, err := EncodeFontMeta([]GlyphBounds{{Glyph: 'a', Start: -1, End: 2}}); err == nil {
		t.Error("EncodeFontMeta accepted a negative start")
	}
}
