package ssim

import (
	"fmt"
	"strings"
)

// Sentinel errors. Use errors.Is(err, ErrShapeMismatch) and friends to
// classify failures returned by Compute and the constructors.
var (
	ErrShapeMismatch    = &ShapeError{}
	ErrInvalidParameter = &ParameterError{}
	ErrInvalidType      = &TypeError{}
	ErrInvalidShape     = &ArrayError{}
)

// ShapeError reports that candidate and reference arrays differ in shape.
type ShapeError struct {
	Candidate []int
	Reference []int
	// Layout is set when the shapes agree but only one side has a channel axis.
	Layout bool
}

func (e *ShapeError) Error() string {
	if e.Candidate == nil && e.Reference == nil {
		return "shape mismatch"
	}
	if e.Layout {
		return fmt.Sprintf("shape mismatch: channel layout differs for shape %s", formatShape(e.Reference))
	}
	return fmt.Sprintf("shape mismatch: candidate %s, reference %s", formatShape(e.Candidate), formatShape(e.Reference))
}

func (e *ShapeError) Is(target error) bool {
	_, ok := target.(*ShapeError)
	return ok
}

// ParameterError reports an exponent, regularization constant or radius
// outside its allowed range.
type ParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Name == "" {
		return "invalid parameter"
	}
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Is(target error) bool {
	_, ok := target.(*ParameterError)
	return ok
}

// TypeError reports an element type with no known dynamic range.
type TypeError struct {
	DType DType
}

func (e *TypeError) Error() string {
	if e.DType == DTypeInvalid {
		return "invalid element type"
	}
	return fmt.Sprintf("invalid element type %s: no dynamic range, supply constants explicitly", e.DType)
}

func (e *TypeError) Is(target error) bool {
	_, ok := target.(*TypeError)
	return ok
}

// ArrayError reports a malformed array (bad dims or data length).
type ArrayError struct {
	Msg string
}

func (e *ArrayError) Error() string {
	if e.Msg == "" {
		return "invalid array"
	}
	return "invalid array: " + e.Msg
}

func (e *ArrayError) Is(target error) bool {
	_, ok := target.(*ArrayError)
	return ok
}

func formatShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, "x") + "]"
}
