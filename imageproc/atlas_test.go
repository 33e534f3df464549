package imageproc

import (
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestBuildAtlas(t *testing.T) {
	atlas, glyphs, err := BuildAtlas(basicfont.Face7x13, "abc", 2)
	if err != nil {
		t.Fatalf("BuildAtlas failed: %v", err)
	}
	if len(glyphs) != 3 {
		t.Fatalf("got %d glyphs, want 3", len(glyphs))
	}
	for i, g := range glyphs {
		if g.Glyph != rune("abc"[i]) {
			t.Errorf("glyph %d = %q, want %q", i, g.Glyph, "abc"[i])
		}
		if g.Width() <= 0 {
			t.Errorf("glyph %q has width %d", g.Glyph, g.Width())
		}
		if i > 0 && g.Start != glyphs[i-1].End+3 {
			t.Errorf("glyph %q starts at %d, want %d", g.Glyph, g.Start, glyphs[i-1].End+3)
		}
	}
	if got, want := atlas.Bounds().Dx(), glyphs[2].End+1; got != want {
		t.Errorf("atlas width = %d, want %d", got, want)
	}
	if got := atlas.Bounds().Dy(); got != 13 {
		t.Errorf("atlas height = %d, want 13", got)
	}

	// every glyph must leave some ink behind
	f := mustFont(t, atlas, glyphs)
	for _, g := range glyphs {
		inked := false
		for x := g.Start; x <= g.End && !inked; x++ {
			for y := 0; y < f.Height(); y++ {
				if f.isInk(x, y) {
					inked = true
					break
				}
			}
		}
		if !inked {
			t.Errorf("glyph %q has no ink", g.Glyph)
		}
	}
}

func TestBuildAtlasErrors(t *testing.T) {
	if _, _, err := BuildAtlas(basicfont.Face7x13, "", 1); err == nil {
		t.Error("BuildAtlas accepted an empty alphabet")
	}
	if _, _, err := BuildAtlas(basicfont.Face7x13, "a", -1); err == nil {
		t.Error("BuildAtlas accepted a negative gap")
	}
}

func TestDefaultFont(t *testing.T) {
	f, err := DefaultFont()
	if err != nil {
		t.Fatalf("DefaultFont failed: %v", err)
	}
	if got := string(f.Alphabet()); got != DefaultAlphabet {
		t.Errorf("Alphabet() = %q, want %q", got, DefaultAlphabet)
	}
	data, err := DefaultFontPNG()
	if err != nil {
		t.Fatalf("DefaultFontPNG failed: %v", err)
	}
	again, err := ParseFont(data)
	if err != nil {
		t.Fatalf("ParseFont(DefaultFontPNG()) failed: %v", err)
	}
	if again.Height() != f.Height() {
		t.Errorf("heights differ: %d vs %d", again.Height(), f.Height())
	}
}
