package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
)

// tempHeightScale leaves room above and below the atlas for vertical jitter.
const tempHeightScale = 1.25

// LookupError reports a key character the font can't draw.
type LookupError struct {
	Glyph rune
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("font has no glyph for %q", e.Glyph)
}

// Compositor draws a key with bitmap glyphs, optionally squeezing
// neighbouring glyphs together until their strokes touch.
type Compositor struct {
	Font  *FontAsset
	Color color.RGBA
	// Overlay enables glyph overlap; OverlayPixels tightens it further.
	Overlay       bool
	OverlayPixels int
	Rand          *rand.Rand
}

// Print implements Printer.
func (c *Compositor) Print(canvas *image.RGBA, key string) error {
	_, err := c.Draw(canvas, key)
	return err
}

// Draw renders key onto canvas in place and returns it.
func (c *Compositor) Draw(canvas *image.RGBA, key string) (*image.RGBA, error) {
	temp, width, err := c.compose(key)
	if err != nil {
		return nil, err
	}
	Logger().Debug("composed key", "glyphs", len([]rune(key)), "width", width, "height", temp.Rect.Dy())
	blit(canvas, temp, width)
	return canvas, nil
}

// compose renders key into a transparent strip and returns the strip along
// with the x position one past the last drawn column.
func (c *Compositor) compose(key string) (*image.NRGBA, int, error) {
	font := c.Font
	glyphs := make([]GlyphBounds, 0, len(key))
	width := 0
	for _, r := range key {
		b, ok := font.Bounds(r)
		if !ok {
			return nil, 0, &LookupError{Glyph: r}
		}
		glyphs = append(glyphs, b)
		width += b.Width()
	}

	atlasHeight := font.Height()
	height := int(math.Round(float64(atlasHeight) * tempHeightScale))
	temp := image.NewNRGBA(image.Rect(0, 0, width, height))
	frontier := make([]int, height)

	x := 0
	for i, g := range glyphs {
		y := 0
		if jitter := height - atlasHeight; jitter > 0 {
			y = c.Rand.Intn(jitter)
		}

		if c.Overlay && i > 0 {
			x -= c.overlapShift(g, x, y, frontier) + c.OverlayPixels
			if x < 0 {
				x = 0
			}
		}

		x = c.stamp(temp, g, x, y, frontier)
	}
	return temp, x, nil
}

// overlapShift finds how far glyph g, about to be drawn at (x, y), can move
// left before its ink crosses the frontier on any row.
func (c *Compositor) overlapShift(g GlyphBounds, x, y int, frontier []int) int {
	font := c.Font
	shift := math.MaxInt
	for col := 0; col < g.Width(); col++ {
		for row := 0; row < font.Height(); row++ {
			if !font.isInk(g.Start+col, row) {
				continue
			}
			if d := x + col - frontier[y+row]; d < shift {
				shift = d
			}
		}
		// columns further right can only be further away
		if col >= shift {
			break
		}
	}
	if shift == math.MaxInt {
		return g.Width()
	}
	// a frontier already past x leaves nothing to overlap
	return max(shift, 0)
}

// stamp adds glyph g to temp at column x, updating the frontier, and
// returns the column following the glyph.
func (c *Compositor) stamp(temp *image.NRGBA, g GlyphBounds, x, y int, frontier []int) int {
	font := c.Font
	threshold := int(font.Threshold())
	for fx := g.Start; fx <= g.End; fx++ {
		for row := 0; row < font.Height(); row++ {
			i := temp.PixOffset(x, y+row)
			alpha := int(font.Darkness(fx, row)) + int(temp.Pix[i+3])
			if alpha > 255 {
				alpha = 255
			}
			temp.Pix[i+0] = c.Color.R
			temp.Pix[i+1] = c.Color.G
			temp.Pix[i+2] = c.Color.B
			temp.Pix[i+3] = uint8(alpha)
			// never moves back, even under an earlier glyph's overhang
			if alpha >= threshold && x > frontier[y+row] {
				frontier[y+row] = x
			}
		}
		x++
	}
	return x
}

// span picks matching ranges on the canvas and the strip along one axis:
// the strip is cropped around its middle when it doesn't fit, centered
// otherwise.
func span(canvasSize, tempSize int) (canvasStart, tempStart, n int) {
	if tempSize >= canvasSize {
		return 0, (tempSize - canvasSize) / 2, canvasSize
	}
	return (canvasSize - tempSize) / 2, 0, tempSize
}

func blit(canvas *image.RGBA, temp *image.NRGBA, width int) {
	cb := canvas.Bounds()
	cx, tx, w := span(cb.Dx(), width)
	cy, ty, h := span(cb.Dy(), temp.Rect.Dy())

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			ti := temp.PixOffset(tx+i, ty+j)
			a := temp.Pix[ti+3]
			if a == 0 {
				continue
			}
			ci := canvas.PixOffset(cb.Min.X+cx+i, cb.Min.Y+cy+j)
			// tc*a/255 + cc*(1-a/255), truncated
			for ch := 0; ch < 3; ch++ {
				tc, cc := int(temp.Pix[ti+ch]), int(canvas.Pix[ci+ch])
				canvas.Pix[ci+ch] = uint8((tc*int(a) + cc*(255-int(a))) / 255)
			}
			canvas.Pix[ci+3] = 255
		}
	}
}
