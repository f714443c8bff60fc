package ssim

import (
	"log/slog"
	"math"
)

// DType tags the element type an Array was decoded from. Samples are always
// held as float64; the tag only drives dynamic-range inference.
type DType int

const (
	DTypeInvalid DType = iota
	DTypeUint8
	DTypeUint16
	DTypeUint32
	DTypeUint64
	DTypeInt8
	DTypeInt16
	DTypeInt32
	DTypeInt64
	DTypeFloat32
	DTypeFloat64
	// Recognised tags without a numeric range.
	DTypeBool
	DTypeComplex128
)

func (d DType) String() string {
	switch d {
	case DTypeUint8:
		return "uint8"
	case DTypeUint16:
		return "uint16"
	case DTypeUint32:
		return "uint32"
	case DTypeUint64:
		return "uint64"
	case DTypeInt8:
		return "int8"
	case DTypeInt16:
		return "int16"
	case DTypeInt32:
		return "int32"
	case DTypeInt64:
		return "int64"
	case DTypeFloat32:
		return "float32"
	case DTypeFloat64:
		return "float64"
	case DTypeBool:
		return "bool"
	case DTypeComplex128:
		return "complex128"
	default:
		return "invalid"
	}
}

// ParseDType is the inverse of DType.String.
func ParseDType(s string) DType {
	for d := DTypeUint8; d <= DTypeComplex128; d++ {
		if d.String() == s {
			return d
		}
	}
	return DTypeInvalid
}

// IsInteger reports whether d is one of the fixed-width integer types.
func (d DType) IsInteger() bool {
	_, ok := integerBounds[d]
	return ok
}

// IsFloat reports whether d is a floating-point type.
func (d DType) IsFloat() bool {
	return d == DTypeFloat32 || d == DTypeFloat64
}

type bounds struct {
	min, max float64
}

var integerBounds = map[DType]bounds{
	DTypeUint8:  {0, math.MaxUint8},
	DTypeUint16: {0, math.MaxUint16},
	DTypeUint32: {0, math.MaxUint32},
	DTypeUint64: {0, math.MaxUint64},
	DTypeInt8:   {math.MinInt8, math.MaxInt8},
	DTypeInt16:  {math.MinInt16, math.MaxInt16},
	DTypeInt32:  {math.MinInt32, math.MaxInt32},
	DTypeInt64:  {math.MinInt64, math.MaxInt64},
}

var floatBounds = map[DType]bounds{
	DTypeFloat32: {-math.MaxFloat32, math.MaxFloat32},
	DTypeFloat64: {-math.MaxFloat64, math.MaxFloat64},
}

// DynamicRange returns max-min of the representable values of d.
//
// Floating-point types report their full finite range. For float32 this is
// about 6.8e38; for float64 the subtraction overflows to +Inf. Either way the
// derived default constants swamp every local statistic, so float images
// should be compared with explicit constants.
func DynamicRange(d DType) (float64, error) {
	if b, ok := integerBounds[d]; ok {
		return b.max - b.min, nil
	}
	if b, ok := floatBounds[d]; ok {
		return b.max - b.min, nil
	}
	return 0, &TypeError{DType: d}
}

// DefaultConstants derives (C1, C2, C3) from the dynamic range R of d:
// C1=(0.01R)², C2=(0.03R)², C3=C2/2.
func DefaultConstants(d DType) ([3]float64, error) {
	r, err := DynamicRange(d)
	if err != nil {
		return [3]float64{}, err
	}
	if d.IsFloat() {
		slog.Warn("Deriving SSIM constants from floating-point range; pass explicit constants for float images",
			"dtype", d.String(), "range", r)
	}
	c1 := (0.01 * r) * (0.01 * r)
	c2 := (0.03 * r) * (0.03 * r)
	return [3]float64{c1, c2, c2 / 2}, nil
}
