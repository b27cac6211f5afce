package synth

import "fmt"

// Canvas is the pixel grid shared by every stage of one image.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate rejects empty canvases.
func (c Canvas) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidParams, c.Width, c.Height)
	}
	return nil
}

// Field is a row-major scalar grid over a canvas. Pix[y*Width+x] holds pixel (x, y).
type Field struct {
	Width  int
	Height int
	Pix    []float64
}

// NewField allocates a zeroed field.
func NewField(c Canvas) *Field {
	return &Field{Width: c.Width, Height: c.Height, Pix: make([]float64, c.Width*c.Height)}
}

func (f *Field) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

func (f *Field) Set(x, y int, v float64) {
	f.Pix[y*f.Width+x] = v
}

// Canvas returns the field's shape.
func (f *Field) Canvas() Canvas {
	return Canvas{Width: f.Width, Height: f.Height}
}

// Mul multiplies f elementwise by g in place.
func (f *Field) Mul(g *Field) error {
	if f.Width != g.Width || f.Height != g.Height {
		return fmt.Errorf("shape mismatch: %dx%d vs %dx%d", f.Width, f.Height, g.Width, g.Height)
	}
	for i := range f.Pix {
		f.Pix[i] *= g.Pix[i]
	}
	return nil
}
