package metric

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/ssimgo/internal/ssim"
)

// Evaluation bundles the SSIM result with the pixel-error metrics of the
// same pair.
type Evaluation struct {
	Result  *ssim.Result
	MSE     float64
	PSNR    float64
	Elapsed time.Duration
}

// Evaluate runs SSIM, MSE and PSNR over one candidate/reference pair.
func Evaluate(candidate, reference *ssim.Array, opts ssim.Options) (*Evaluation, error) {
	start := time.Now()

	res, err := ssim.Compute(candidate, reference, opts)
	if err != nil {
		return nil, err
	}

	mse, err := MSE(candidate, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mse: %w", err)
	}

	psnr, err := PSNR(candidate, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to compute psnr: %w", err)
	}

	ev := &Evaluation{
		Result:  res,
		MSE:     mse,
		PSNR:    psnr,
		Elapsed: time.Since(start),
	}
	slog.Info("Comparison complete", "ssim", res.Value(), "mse", mse, "psnr", psnr, "fast_path", res.FastPath, "elapsed", ev.Elapsed)
	return ev, nil
}
