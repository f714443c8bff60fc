package ssim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// localStats holds the Gaussian-weighted local moments of a candidate X and
// reference Y. All slices share the input layout.
type localStats struct {
	muXY    []float64 // μx·μy
	muX2    []float64 // μx²
	muY2    []float64 // μy²
	sigmaX2 []float64 // max(G(X²) - μx², 0)
	sigmaY2 []float64 // max(G(Y²) - μy², 0)
	sigmaXY []float64 // G(X·Y) - μx·μy
}

// estimateStats smooths x, y and their second-order products with the same
// kernel. x and y are read only.
func estimateStats(x, y *Array, sigma float64) *localStats {
	shape, ch := x.Shape, x.Channels
	smooth := func(v []float64) []float64 {
		return gaussianFilter(v, shape, ch, sigma)
	}

	muX := smooth(x.Data)
	muY := smooth(y.Data)

	n := len(x.Data)
	s := &localStats{
		muXY: floats.MulTo(make([]float64, n), muX, muY),
		muX2: floats.MulTo(make([]float64, n), muX, muX),
		muY2: floats.MulTo(make([]float64, n), muY, muY),
	}

	xx := smooth(floats.MulTo(make([]float64, n), x.Data, x.Data))
	yy := smooth(floats.MulTo(make([]float64, n), y.Data, y.Data))
	xy := smooth(floats.MulTo(make([]float64, n), x.Data, y.Data))

	// Cancellation can push variances slightly below zero.
	s.sigmaX2 = clampMin(floats.SubTo(xx, xx, s.muX2), 0)
	s.sigmaY2 = clampMin(floats.SubTo(yy, yy, s.muY2), 0)
	s.sigmaXY = floats.SubTo(xy, xy, s.muXY)
	return s
}

// rootVarianceProduct returns sqrt(σx²·σy²).
func (s *localStats) rootVarianceProduct() []float64 {
	out := floats.MulTo(make([]float64, len(s.sigmaX2)), s.sigmaX2, s.sigmaY2)
	for i, v := range out {
		out[i] = math.Sqrt(v)
	}
	return out
}

func clampMin(v []float64, lo float64) []float64 {
	for i, x := range v {
		if x < lo {
			v[i] = lo
		}
	}
	return v
}
