package imageproc

import (
	"image"
	"image/color"
	"image/draw"
)

// FontLoader supplies the glyph atlas for a render.
type FontLoader interface {
	LoadFont() (*FontAsset, error)
}

// Printer draws a key onto a canvas in place.
type Printer interface {
	Print(canvas *image.RGBA, key string) error
}

// Filter transforms a finished canvas.
type Filter interface {
	Apply(img *image.RGBA) *image.RGBA
}

// Pipeline renders a key onto a fresh canvas and runs it through Filters
// in order.
type Pipeline struct {
	Width      int
	Height     int
	Background color.RGBA
	Printer    Printer
	Filters    []Filter
}

func (p *Pipeline) Render(key string) (*image.RGBA, error) {
	img := NewCanvas(p.Width, p.Height, p.Background)
	if err := p.Printer.Print(img, key); err != nil {
		return nil, err
	}
	for _, f := range p.Filters {
		img = f.Apply(img)
	}
	return img, nil
}

// NewCanvas returns a width×height image filled with bg.
func NewCanvas(width, height int, bg color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return img
}
