// Package ssim computes the generalized Structural Similarity index between
// a candidate and a reference array.
//
// Local means, variances and the covariance are estimated with an isotropic
// Gaussian window. The luminance, contrast and structure comparisons are each
// a regularized ratio raised to a configurable exponent; their product is the
// SSIM map, and its spatial mean is the index (one value per channel when the
// arrays carry a trailing channel axis).
//
// Compute holds no state between calls: every intermediate buffer is
// allocated per call, so concurrent calls on distinct inputs are safe.
package ssim

import (
	"fmt"
	"log/slog"
	"math"
)

// DefaultRadius is the default standard deviation of the Gaussian window.
const DefaultRadius = 1.5

// Options are the caller-tunable parameters. A nil field is unset and gets
// its default when the options are resolved against a reference type.
type Options struct {
	// Exponents for luminance, contrast and structure. Default (1,1,1).
	Exponents *[3]float64
	// Constants C1, C2, C3. Default derived from the reference dynamic range.
	Constants *[3]float64
	// Radius is the Gaussian standard deviation. Default 1.5.
	Radius *float64
}

// Params are fully resolved options.
type Params struct {
	Exponents [3]float64 `json:"exponents" yaml:"exponents"`
	Constants [3]float64 `json:"constants" yaml:"constants"`
	Radius    float64    `json:"radius" yaml:"radius"`
}

// FastPath reports whether the closed-form combination applies.
func (p Params) FastPath() bool {
	return p.Constants[2] == p.Constants[1]/2 &&
		p.Exponents == [3]float64{1, 1, 1}
}

var termNames = [3]string{"luminance", "contrast", "structure"}

// Validate checks the explicitly supplied fields.
func (o Options) Validate() error {
	if o.Exponents != nil {
		for i, e := range o.Exponents {
			if !(e >= 0) || math.IsInf(e, 0) {
				return &ParameterError{Name: "exponents[" + termNames[i] + "]", Value: e, Reason: "must be finite and >= 0"}
			}
		}
	}
	if o.Constants != nil {
		for i, c := range o.Constants {
			if !(c >= 0) || math.IsInf(c, 0) {
				return &ParameterError{Name: "constants[" + termNames[i] + "]", Value: c, Reason: "must be finite and >= 0"}
			}
		}
	}
	if o.Radius != nil {
		r := *o.Radius
		if !(r > 0) || math.IsInf(r, 0) {
			return &ParameterError{Name: "radius", Value: r, Reason: "must be finite and > 0"}
		}
	}
	return nil
}

// Resolve validates o and fills unset fields, deriving default constants
// from the reference element type.
func (o Options) Resolve(ref DType) (Params, error) {
	if err := o.Validate(); err != nil {
		return Params{}, err
	}

	p := Params{
		Exponents: [3]float64{1, 1, 1},
		Radius:    DefaultRadius,
	}
	if o.Exponents != nil {
		p.Exponents = *o.Exponents
	}
	if o.Radius != nil {
		p.Radius = *o.Radius
	}
	if o.Constants != nil {
		p.Constants = *o.Constants
	} else {
		c, err := DefaultConstants(ref)
		if err != nil {
			return Params{}, err
		}
		p.Constants = c
	}
	return p, nil
}

// Result is the output of Compute.
type Result struct {
	// Index holds the mean of Map over the spatial axes, one entry per channel.
	Index []float64
	// Map has the input shape and holds the local SSIM values.
	Map *Array
	// Params are the parameters actually used.
	Params Params
	// FastPath is true when the closed form was evaluated.
	FastPath bool
}

// Value collapses Index to a single number (the mean across channels).
func (r *Result) Value() float64 {
	if len(r.Index) == 1 {
		return r.Index[0]
	}
	var sum float64
	for _, v := range r.Index {
		sum += v
	}
	return sum / float64(len(r.Index))
}

// Compute returns the SSIM index and map of candidate against reference.
// Neither input is modified.
//
// Float64 inputs with unset Constants derive infinite constants (see
// DynamicRange). Every term then evaluates Inf/Inf, so the map and index are
// NaN. Pass explicit Constants for float images.
func Compute(candidate, reference *Array, opts Options) (*Result, error) {
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}
	if err := reference.Validate(); err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	if !candidate.SameShape(reference) {
		return nil, &ShapeError{
			Candidate: candidate.Shape,
			Reference: reference.Shape,
			Layout:    candidate.Channels != reference.Channels,
		}
	}

	params, err := opts.Resolve(reference.DType)
	if err != nil {
		return nil, err
	}

	stats := estimateStats(candidate, reference, params.Radius)

	fast := params.FastPath()
	var m []float64
	if fast {
		m = fastMap(stats, params.Constants)
	} else {
		m = generalMap(stats, params)
	}
	slog.Debug("SSIM map computed", "shape", formatShape(reference.Shape), "fast_path", fast, "backend", ActiveBackend.String())

	ssimMap := reference.like(m)
	return &Result{
		Index:    Reduce(ssimMap),
		Map:      ssimMap,
		Params:   params,
		FastPath: fast,
	}, nil
}
