package synth

import (
	"fmt"
	"math"
)

// BuildMask marks the pixels inside an ellipse centred on the canvas midpoint with
// 1 and everything else with 0. The ellipse is rotated by angleDeg degrees; its semi-axes
// along the rotated frame are major and minor.
func BuildMask(c Canvas, major, minor, angleDeg float64) (*Field, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !(major > 0) || !(minor > 0) || math.IsInf(major, 0) || math.IsInf(minor, 0) {
		return nil, fmt.Errorf("%w: axes must be positive and finite, got %v and %v", ErrInvalidParams, major, minor)
	}

	theta := angleDeg * math.Pi / 180
	sin, cos := math.Sincos(theta)
	cx, cy := float64(c.Width)/2, float64(c.Height)/2

	mask := NewField(c)
	for y := 0; y < c.Height; y++ {
		dy := float64(y) - cy
		for x := 0; x < c.Width; x++ {
			dx := float64(x) - cx
			xr := dx*cos + dy*sin
			yr := -dx*sin + dy*cos
			u, v := xr/major, yr/minor
			if u*u+v*v <= 1 {
				mask.Pix[y*c.Width+x] = 1
			}
		}
	}
	return mask, nil
}
