package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"math"
	"net/http"

	"github.com/cwbudde/ssimgo/internal/imageio"
	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/cwbudde/ssimgo/internal/store"
)

// respondJSON writes data as a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps engine, loader and store errors onto HTTP status codes.
func errorStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ssim.ErrShapeMismatch),
		errors.Is(err, ssim.ErrInvalidParameter),
		errors.Is(err, ssim.ErrInvalidType),
		errors.Is(err, ssim.ErrInvalidShape),
		errors.Is(err, imageio.ErrDecode),
		errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the status errorStatus picks for err.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	respondError(w, status, err.Error())
}

// mapImage renders an SSIM map as grayscale: -1 is black, 1 is white.
// Channels are averaged per pixel. Only maps with two spatial axes can be
// rendered.
func mapImage(m *ssim.Array) (*image.Gray, error) {
	spatial := m.SpatialShape()
	if len(spatial) != 2 {
		return nil, &ssim.ArrayError{Msg: fmt.Sprintf("cannot render map with %d spatial axes", len(spatial))}
	}
	h, w := spatial[0], spatial[1]
	k := m.NumChannels()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := (y*w + x) * k
			var sum float64
			for c := 0; c < k; c++ {
				sum += m.Data[base+c]
			}
			v := (sum/float64(k) + 1) / 2

			// Clamp to 0-255
			normalized := uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
			img.SetGray(x, y, color.Gray{Y: normalized})
		}
	}

	return img, nil
}
