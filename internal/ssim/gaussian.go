package ssim

import (
	"log/slog"
	"math"

	"golang.org/x/sys/cpu"
)

// Gaussian smoothing used for the local statistics.
//
// The filter is separable: one 1-D pass per spatial axis, each tap weight
// exp(-x²/2σ²) normalised so the kernel sums to 1. The kernel is truncated at
// int(4σ+0.5) taps on either side. Samples outside an axis take the value of
// the nearest edge sample, so a constant input stays constant.
//
// Architecture-specific inner loops:
//   - FMA:    math.FMA per tap, used when the CPU fuses multiply-add in hardware
//   - scalar: plain multiply-add, used elsewhere (math.FMA is emulated there)

const truncate = 4.0

// KernelBackend indicates which inner loop is active for the Gaussian filter.
type KernelBackend int

const (
	KernelBackendScalar KernelBackend = iota
	KernelBackendFMA
)

func (b KernelBackend) String() string {
	switch b {
	case KernelBackendFMA:
		return "FMA"
	case KernelBackendScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// ActiveBackend reports which backend was selected at init.
var ActiveBackend KernelBackend

// convolveLine filters one gathered line (src, with edge padding already
// applied) into dst.
var convolveLine func(dst, padded, kernel []float64)

func init() {
	if cpu.X86.HasFMA || cpu.ARM64.HasASIMD {
		ActiveBackend = KernelBackendFMA
		convolveLine = convolveLineFMA
		slog.Debug("Gaussian kernel initialized", "backend", "FMA")
	} else {
		ActiveBackend = KernelBackendScalar
		convolveLine = convolveLineScalar
		slog.Debug("Gaussian kernel initialized", "backend", "scalar")
	}
}

func convolveLineScalar(dst, padded, kernel []float64) {
	for i := range dst {
		window := padded[i : i+len(kernel)]
		var sum float64
		for j, w := range kernel {
			sum += w * window[j]
		}
		dst[i] = sum
	}
}

func convolveLineFMA(dst, padded, kernel []float64) {
	for i := range dst {
		window := padded[i : i+len(kernel)]
		var sum float64
		for j, w := range kernel {
			sum = math.FMA(w, window[j], sum)
		}
		dst[i] = sum
	}
}

// gaussianKernel returns the normalised 1-D kernel for sigma.
func gaussianKernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	denom := -0.5 / (sigma * sigma)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(denom * float64(i*i))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// gaussianFilter smooths data (laid out as shape) along every spatial axis.
// With channels set, the last axis is left untouched. The input is not
// modified; a new slice is returned.
func gaussianFilter(data []float64, shape []int, channels bool, sigma float64) []float64 {
	kernel := gaussianKernel(sigma)
	axes := len(shape)
	if channels {
		axes--
	}

	cur := make([]float64, len(data))
	copy(cur, data)
	next := make([]float64, len(data))
	for axis := 0; axis < axes; axis++ {
		filterAxis(next, cur, shape, axis, kernel)
		cur, next = next, cur
	}
	return cur
}

// filterAxis convolves every line of src along axis into dst.
func filterAxis(dst, src []float64, shape []int, axis int, kernel []float64) {
	n := shape[axis]
	stride := 1
	for _, d := range shape[axis+1:] {
		stride *= d
	}
	outer := len(src) / (n * stride)
	r := len(kernel) / 2

	padded := make([]float64, n+2*r)
	line := make([]float64, n)

	for o := 0; o < outer; o++ {
		for inner := 0; inner < stride; inner++ {
			base := o*n*stride + inner
			for i := 0; i < n; i++ {
				padded[r+i] = src[base+i*stride]
			}
			first, last := padded[r], padded[r+n-1]
			for i := 0; i < r; i++ {
				padded[i] = first
				padded[r+n+i] = last
			}
			convolveLine(line, padded, kernel)
			for i := 0; i < n; i++ {
				dst[base+i*stride] = line[i]
			}
		}
	}
}
