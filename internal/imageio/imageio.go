// Package imageio decodes image files into ssim arrays.
//
// PNG, JPEG and GIF are handled by the standard library; BMP, TIFF and WebP
// by golang.org/x/image. Alpha is discarded. Sources with 16 bits per sample
// become DTypeUint16 arrays, everything else DTypeUint8.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"

	"github.com/cwbudde/ssimgo/internal/ssim"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode wraps every failure to turn input bytes into an array.
var ErrDecode = errors.New("failed to decode image")

// Layout selects how pixels map onto array axes.
type Layout string

const (
	// LayoutGray produces [H,W] luma arrays.
	LayoutGray Layout = "gray"
	// LayoutRGB produces [H,W,3] arrays with a trailing R,G,B channel axis.
	LayoutRGB Layout = "rgb"
)

// ParseLayout accepts "gray" or "rgb". An empty string means rgb.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutRGB:
		return LayoutRGB, nil
	case LayoutGray:
		return LayoutGray, nil
	default:
		return "", fmt.Errorf("unknown layout %q (want gray or rgb)", s)
	}
}

// Load opens and decodes path.
func Load(path string, layout Layout) (*ssim.Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	arr, format, err := Decode(f, layout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Loaded image", "path", path, "format", format, "shape", arr.Shape, "dtype", arr.DType.String())
	return arr, nil
}

// Decode reads an image from r and returns it with the detected format name.
func Decode(r io.Reader, layout Layout) (*ssim.Array, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	arr, err := FromImage(img, layout)
	if err != nil {
		return nil, "", err
	}
	return arr, format, nil
}

// LoadPair loads a candidate and a reference with the same layout. If only
// one of them is 16-bit, the 8-bit one is widened so both share a range.
func LoadPair(candidatePath, referencePath string, layout Layout) (candidate, reference *ssim.Array, err error) {
	candidate, err = Load(candidatePath, layout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	reference, err = Load(referencePath, layout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load reference: %w", err)
	}
	candidate, reference = MatchDepth(candidate, reference)
	return candidate, reference, nil
}

// MatchDepth widens a uint8 array to uint16 when the other side is uint16.
// Arrays already sharing a type are returned unchanged.
func MatchDepth(a, b *ssim.Array) (*ssim.Array, *ssim.Array) {
	switch {
	case a.DType == ssim.DTypeUint8 && b.DType == ssim.DTypeUint16:
		return widen(a), b
	case a.DType == ssim.DTypeUint16 && b.DType == ssim.DTypeUint8:
		return a, widen(b)
	default:
		return a, b
	}
}

// widen maps [0,255] onto [0,65535] (v*257, exact for 8-bit samples).
func widen(a *ssim.Array) *ssim.Array {
	out := a.Clone()
	out.DType = ssim.DTypeUint16
	for i, v := range out.Data {
		out.Data[i] = v * 257
	}
	return out
}

// FromImage converts img into an array with the given layout.
func FromImage(img image.Image, layout Layout) (*ssim.Array, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrDecode, bounds)
	}
	deep := is16Bit(img)

	switch layout {
	case LayoutGray:
		return grayArray(img, deep)
	case LayoutRGB, "":
		return rgbArray(img, deep)
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}
}

func is16Bit(img image.Image) bool {
	switch img.ColorModel() {
	case color.Gray16Model, color.RGBA64Model, color.NRGBA64Model:
		return true
	default:
		return false
	}
}

func grayArray(img image.Image, deep bool) (*ssim.Array, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float64, w*h)

	if deep {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				data[(y-bounds.Min.Y)*w+(x-bounds.Min.X)] = float64(g.Y)
			}
		}
		return ssim.NewArray(ssim.DTypeUint16, []int{h, w}, data, false)
	}

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, v := range row {
				data[y*w+x] = float64(v)
			}
		}
		return ssim.NewArray(ssim.DTypeUint8, []int{h, w}, data, false)
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			data[(y-bounds.Min.Y)*w+(x-bounds.Min.X)] = float64(g.Y)
		}
	}
	return ssim.NewArray(ssim.DTypeUint8, []int{h, w}, data, false)
}

func rgbArray(img image.Image, deep bool) (*ssim.Array, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]float64, w*h*3)

	if deep {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
				i := ((y-bounds.Min.Y)*w + (x - bounds.Min.X)) * 3
				data[i+0] = float64(c.R)
				data[i+1] = float64(c.G)
				data[i+2] = float64(c.B)
			}
		}
		return ssim.NewArray(ssim.DTypeUint16, []int{h, w, 3}, data, true)
	}

	// Convert to NRGBA
	ref, ok := img.(*image.NRGBA)
	if !ok || bounds.Min != (image.Point{}) {
		ref = image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(ref, ref.Bounds(), img, bounds.Min, draw.Src)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Extract RGB (ignore alpha)
			p := ref.PixOffset(x, y)
			i := (y*w + x) * 3
			data[i+0] = float64(ref.Pix[p+0])
			data[i+1] = float64(ref.Pix[p+1])
			data[i+2] = float64(ref.Pix[p+2])
		}
	}
	return ssim.NewArray(ssim.DTypeUint8, []int{h, w, 3}, data, true)
}
