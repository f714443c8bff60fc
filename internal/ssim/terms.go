package ssim

import "math"

// guardedTerm computes (num/den)^exponent element-wise.
//
// With c == 0 a zero denominator yields 1 instead of NaN or Inf. With c > 0
// the denominator is already strictly positive. Non-integer exponents clamp
// the ratio at 0 first so the power stays real.
func guardedTerm(num, den []float64, c, exponent float64) []float64 {
	out := make([]float64, len(num))
	if c > 0 {
		for i := range out {
			out[i] = num[i] / den[i]
		}
	} else {
		for i := range out {
			if den[i] != 0 {
				out[i] = num[i] / den[i]
			} else {
				out[i] = 1
			}
		}
	}

	if exponent != math.Trunc(exponent) {
		out = clampMin(out, 0)
	}
	if exponent != 1 {
		for i, v := range out {
			out[i] = math.Pow(v, exponent)
		}
	}
	return out
}

// luminanceTerm is (2μxμy + C1)/(μx² + μy² + C1).
func luminanceTerm(s *localStats, c, exponent float64) []float64 {
	n := len(s.muXY)
	num := make([]float64, n)
	den := make([]float64, n)
	for i := 0; i < n; i++ {
		num[i] = 2*s.muXY[i] + c
		den[i] = s.muX2[i] + s.muY2[i] + c
	}
	return guardedTerm(num, den, c, exponent)
}

// contrastTerm is (2σxσy + C2)/(σx² + σy² + C2).
func contrastTerm(s *localStats, sxsy []float64, c, exponent float64) []float64 {
	n := len(sxsy)
	num := make([]float64, n)
	den := make([]float64, n)
	for i := 0; i < n; i++ {
		num[i] = 2*sxsy[i] + c
		den[i] = s.sigmaX2[i] + s.sigmaY2[i] + c
	}
	return guardedTerm(num, den, c, exponent)
}

// structureTerm is (σxy + C3)/(σxσy + C3).
func structureTerm(s *localStats, sxsy []float64, c, exponent float64) []float64 {
	n := len(sxsy)
	num := make([]float64, n)
	den := make([]float64, n)
	for i := 0; i < n; i++ {
		num[i] = s.sigmaXY[i] + c
		den[i] = sxsy[i] + c
	}
	return guardedTerm(num, den, c, exponent)
}

// product returns the element-wise product of acc and term as a new slice.
func product(acc, term []float64) []float64 {
	out := make([]float64, len(acc))
	for i := range out {
		out[i] = acc[i] * term[i]
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// generalMap multiplies the enabled terms. A zero exponent skips the term
// entirely; it contributes the neutral 1.
func generalMap(s *localStats, p Params) []float64 {
	n := len(s.muXY)
	acc := ones(n)
	if p.Exponents[0] > 0 {
		acc = product(acc, luminanceTerm(s, p.Constants[0], p.Exponents[0]))
	}

	var sxsy []float64
	if p.Exponents[1] > 0 {
		sxsy = s.rootVarianceProduct()
		acc = product(acc, contrastTerm(s, sxsy, p.Constants[1], p.Exponents[1]))
	}
	if p.Exponents[2] > 0 {
		if sxsy == nil {
			sxsy = s.rootVarianceProduct()
		}
		acc = product(acc, structureTerm(s, sxsy, p.Constants[2], p.Exponents[2]))
	}
	return acc
}

// fastMap evaluates the closed form
//
//	((2μxμy + C1)(2σxy + C2)) / ((μx² + μy² + C1)(σx² + σy² + C2))
//
// valid when C3 == C2/2 and all exponents are 1.
func fastMap(s *localStats, c [3]float64) []float64 {
	n := len(s.muXY)
	out := make([]float64, n)
	guard := !(c[0] > 0 && c[1] > 0)
	for i := 0; i < n; i++ {
		num := (2*s.muXY[i] + c[0]) * (2*s.sigmaXY[i] + c[1])
		den := (s.muX2[i] + s.muY2[i] + c[0]) * (s.sigmaX2[i] + s.sigmaY2[i] + c[1])
		if guard && den == 0 {
			out[i] = 1
			continue
		}
		out[i] = num / den
	}
	return out
}
