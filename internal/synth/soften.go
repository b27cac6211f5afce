package synth

import (
	"fmt"
	"math"
)

// far stands in for "no target pixel" inside the squared transform. It is finite so the
// parabola intersections stay well defined.
const far = 1e20

// Soften turns a binary mask into a weight field in [0, 1]:
//
//	w = 0.5 * (1 + erf(d * rolloff))
//
// where d is the signed Euclidean distance to the mask boundary, positive inside.
// A mask with no outside pixels maps to 1 everywhere and an empty mask to 0.
func Soften(mask *Field, rolloff float64) (*Field, error) {
	if rolloff < 0 || math.IsNaN(rolloff) {
		return nil, fmt.Errorf("%w: rolloff %v", ErrInvalidParams, rolloff)
	}

	inside := distanceTransform(mask, false)
	outside := distanceTransform(mask, true)

	out := NewField(mask.Canvas())
	for i := range out.Pix {
		d := inside[i] - outside[i]
		switch {
		case math.IsInf(d, 1):
			out.Pix[i] = 1
		case math.IsInf(d, -1):
			out.Pix[i] = 0
		default:
			out.Pix[i] = 0.5 * (1 + math.Erf(d*rolloff))
		}
	}
	return out, nil
}

// distanceTransform returns, for each pixel of the selected region, the Euclidean distance
// to the nearest pixel outside it; pixels outside the region get 0. With invert false the
// region is the mask (value > 0.5), otherwise its complement. If the region covers the
// whole field the distances are +Inf.
//
// Exact separable transform: a 1D lower-envelope pass down every column, then along
// every row.
func distanceTransform(mask *Field, invert bool) []float64 {
	w, h := mask.Width, mask.Height
	grid := make([]float64, w*h)
	for i, v := range mask.Pix {
		in := v > 0.5
		if in != invert {
			grid[i] = far
		}
	}

	n := max(w, h)
	f := make([]float64, n)
	d := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = grid[y*w+x]
		}
		lowerEnvelope(f[:h], d[:h], v, z)
		for y := 0; y < h; y++ {
			grid[y*w+x] = d[y]
		}
	}

	for y := 0; y < h; y++ {
		row := grid[y*w : (y+1)*w]
		copy(f, row)
		lowerEnvelope(f[:w], d[:w], v, z)
		copy(row, d[:w])
	}

	for i, sq := range grid {
		if sq >= far/2 {
			grid[i] = math.Inf(1)
		} else {
			grid[i] = math.Sqrt(sq)
		}
	}
	return grid
}

// lowerEnvelope computes d[q] = min_p (q-p)^2 + f[p] in linear time
// (Felzenszwalb and Huttenlocher). v and z are scratch buffers of length len(f) and len(f)+1.
func lowerEnvelope(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		fq := f[q] + float64(q*q)
		s := (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = (fq - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
