package imageproc

import (
	"bytes"
	"image"
	"testing"
)

func TestEncodeBytes(t *testing.T) {
	img := NewCanvas(20, 10, red)
	tests := []struct {
		format Format
		mime   string
	}{
		{FormatPNG, "image/png"},
		{FormatJPEG, "image/jpeg"},
		{FormatGIF, "image/gif"},
		{FormatBMP, "image/bmp"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			data, mime, err := EncodeBytes(img, tt.format)
			if err != nil {
				t.Fatalf("EncodeBytes failed: %v", err)
			}
			if mime != tt.mime {
				t.Errorf("content type = %q, want %q", mime, tt.mime)
			}
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("can't decode output: %v", err)
			}
			if cfg.Width != 20 || cfg.Height != 10 {
				t.Errorf("decoded size %dx%d, want 20x10", cfg.Width, cfg.Height)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"png": FormatPNG, ".JPG": FormatJPEG, "jpeg": FormatJPEG, "gif": FormatGIF, "bmp": FormatBMP} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("tiff"); err == nil {
		t.Error("ParseFormat accepted tiff")
	}
	if err := Encode(&bytes.Buffer{}, NewCanvas(1, 1, red), Format("webp")); err == nil {
		t.Error("Encode accepted webp")
	}
}
