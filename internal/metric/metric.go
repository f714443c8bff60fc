package metric

import (
	"fmt"
	"math"

	"github.com/cwbudde/ssimgo/internal/ssim"
	"gonum.org/v1/gonum/floats"
)

// MSE computes the mean squared error over every sample, channels included.
func MSE(candidate, reference *ssim.Array) (float64, error) {
	if err := candidate.Validate(); err != nil {
		return 0, fmt.Errorf("candidate: %w", err)
	}
	if err := reference.Validate(); err != nil {
		return 0, fmt.Errorf("reference: %w", err)
	}
	if !candidate.SameShape(reference) {
		return 0, &ssim.ShapeError{Candidate: candidate.Shape, Reference: reference.Shape}
	}

	diff := floats.SubTo(make([]float64, candidate.Len()), candidate.Data, reference.Data)
	sum := floats.Dot(diff, diff)
	return sum / float64(len(diff)), nil
}

// PSNR computes the peak signal-to-noise ratio in dB. The peak is the
// dynamic range of the reference element type. Identical inputs give +Inf.
func PSNR(candidate, reference *ssim.Array) (float64, error) {
	peak, err := ssim.DynamicRange(reference.DType)
	if err != nil {
		return 0, err
	}
	return PSNRWithPeak(candidate, reference, peak)
}

// PSNRWithPeak is PSNR with an explicit peak value, for float images.
func PSNRWithPeak(candidate, reference *ssim.Array, peak float64) (float64, error) {
	mse, err := MSE(candidate, reference)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(peak*peak/mse), nil
}
