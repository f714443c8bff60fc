package ssim

import (
	"fmt"
	"slices"
)

// Array is an N-dimensional row-major sample grid. All axes are spatial
// unless Channels is set, in which case the last axis indexes channels and
// is never smoothed across.
type Array struct {
	Shape    []int
	Data     []float64
	DType    DType
	Channels bool
}

// Number is the set of Go element types FromSlice accepts.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// NewArray validates shape and data and wraps them without copying.
func NewArray(dtype DType, shape []int, data []float64, channels bool) (*Array, error) {
	a := &Array{
		Shape:    slices.Clone(shape),
		Data:     data,
		DType:    dtype,
		Channels: channels,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks that every dimension is positive, that Data holds exactly
// prod(Shape) samples and that a channel axis has a spatial axis before it.
// Arrays built as struct literals should be checked before use.
func (a *Array) Validate() error {
	if a == nil {
		return &ArrayError{Msg: "nil array"}
	}
	if len(a.Shape) == 0 {
		return &ArrayError{Msg: "shape has no dimensions"}
	}
	n := 1
	for i, d := range a.Shape {
		if d <= 0 {
			return &ArrayError{Msg: fmt.Sprintf("dimension %d has non-positive size %d", i, d)}
		}
		n *= d
	}
	if a.Channels && len(a.Shape) < 2 {
		return &ArrayError{Msg: "channel axis requires at least one spatial dimension"}
	}
	if len(a.Data) != n {
		return &ArrayError{Msg: fmt.Sprintf("data length %d does not match shape %s", len(a.Data), formatShape(a.Shape))}
	}
	return nil
}

// FromSlice converts typed samples into an Array, tagging it with the DType
// matching T.
func FromSlice[T Number](data []T, shape []int, channels bool) (*Array, error) {
	samples := make([]float64, len(data))
	for i, v := range data {
		samples[i] = float64(v)
	}
	return NewArray(dtypeOf[T](), shape, samples, channels)
}

func dtypeOf[T Number]() DType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return DTypeUint8
	case uint16:
		return DTypeUint16
	case uint32:
		return DTypeUint32
	case uint64:
		return DTypeUint64
	case int8:
		return DTypeInt8
	case int16:
		return DTypeInt16
	case int32:
		return DTypeInt32
	case int64:
		return DTypeInt64
	case float32:
		return DTypeFloat32
	case float64:
		return DTypeFloat64
	default:
		// Named types (~T) land here.
		return DTypeInvalid
	}
}

// Len returns the number of samples.
func (a *Array) Len() int {
	return len(a.Data)
}

// NumChannels returns the size of the channel axis, or 1 without one.
func (a *Array) NumChannels() int {
	if !a.Channels {
		return 1
	}
	return a.Shape[len(a.Shape)-1]
}

// SpatialShape returns the shape without the channel axis.
func (a *Array) SpatialShape() []int {
	if !a.Channels {
		return a.Shape
	}
	return a.Shape[:len(a.Shape)-1]
}

// SameShape reports whether a and b have identical shape and channel layout.
func (a *Array) SameShape(b *Array) bool {
	return a.Channels == b.Channels && slices.Equal(a.Shape, b.Shape)
}

// Channel copies out the samples of channel c in row-major spatial order.
func (a *Array) Channel(c int) []float64 {
	k := a.NumChannels()
	if k == 1 {
		return slices.Clone(a.Data)
	}
	out := make([]float64, 0, len(a.Data)/k)
	for i := c; i < len(a.Data); i += k {
		out = append(out, a.Data[i])
	}
	return out
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	return &Array{
		Shape:    slices.Clone(a.Shape),
		Data:     slices.Clone(a.Data),
		DType:    a.DType,
		Channels: a.Channels,
	}
}

// like allocates a Float64 array with a's shape and the given samples.
func (a *Array) like(data []float64) *Array {
	return &Array{
		Shape:    slices.Clone(a.Shape),
		Data:     data,
		DType:    DTypeFloat64,
		Channels: a.Channels,
	}
}
