package synth

// Warp adds a linear ramp from -ax to +ax across the width and from -ay to +ay down
// the height. The field is modified in place and returned.
func Warp(f *Field, ax, ay float64) *Field {
	if ax == 0 && ay == 0 {
		return f
	}
	gx := linspace(-ax, ax, f.Width)
	gy := linspace(-ay, ay, f.Height)
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Width : (y+1)*f.Width]
		for x := range row {
			row[x] += gx[x] + gy[y]
		}
	}
	return f
}

// linspace returns n evenly spaced values from lo to hi inclusive. A single point is lo.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
