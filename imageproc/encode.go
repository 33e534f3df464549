package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
)

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	}
	return "", fmt.Errorf("unknown image format %q", s)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case FormatGIF:
		err = gif.Encode(w, img, nil)
	case FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return fmt.Errorf("unknown image format %q", format)
	}
	if err != nil {
		return fmt.Errorf("can't encode %s: %w", format, err)
	}
	return nil
}

// EncodeBytes encodes img and sniffs the content type of the result.
func EncodeBytes(img image.Image, format Format) ([]byte, string, error) {
	outBuf := bytes.NewBuffer(nil)
	if err := Encode(outBuf, img, format); err != nil {
		return nil, "", err
	}
	data := outBuf.Bytes()
	return data, mimetype.Detect(data).String(), nil
}
