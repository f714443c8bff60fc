package store

import (
	"math"
	"time"

	"github.com/cwbudde/ssimgo/internal/ssim"
	"gonum.org/v1/gonum/floats"
)

// Report is the persisted summary of one comparison.
type Report struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"createdAt"`
	CandidatePath string      `json:"candidatePath,omitempty"`
	ReferencePath string      `json:"referencePath,omitempty"`
	Layout        string      `json:"layout,omitempty"`
	DType         string      `json:"dtype"`
	Shape         []int       `json:"shape"`
	Channels      bool        `json:"channels"`
	Params        ssim.Params `json:"params"`
	FastPath      bool        `json:"fastPath"`

	// Index holds one SSIM value per channel; Value is their mean.
	Index []float64 `json:"index"`
	Value float64   `json:"value"`

	MapMin float64 `json:"mapMin"`
	MapMax float64 `json:"mapMax"`

	MSE float64 `json:"mse"`
	// PSNR is nil when the inputs are identical (infinite PSNR) or the
	// reference type has no dynamic range.
	PSNR *float64 `json:"psnr,omitempty"`
}

// ReportInfo contains list metadata without the parameter payload.
type ReportInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	CandidatePath string    `json:"candidatePath,omitempty"`
	ReferencePath string    `json:"referencePath,omitempty"`
	Shape         []int     `json:"shape"`
	Value         float64   `json:"value"`
}

// NewReport builds a report from a computed result. mse and psnr come from
// the metric package; pass math.Inf(1) or NaN for psnr when not defined.
func NewReport(id string, res *ssim.Result, reference *ssim.Array, mse, psnr float64) *Report {
	r := &Report{
		ID:        id,
		CreatedAt: time.Now(),
		DType:     reference.DType.String(),
		Shape:     append([]int(nil), reference.Shape...),
		Channels:  reference.Channels,
		Params:    res.Params,
		FastPath:  res.FastPath,
		Index:     append([]float64(nil), res.Index...),
		Value:     res.Value(),
		MSE:       mse,
	}
	if len(res.Map.Data) > 0 {
		r.MapMin = floats.Min(res.Map.Data)
		r.MapMax = floats.Max(res.Map.Data)
	}
	if !math.IsInf(psnr, 0) && !math.IsNaN(psnr) {
		r.PSNR = &psnr
	}
	return r
}

// ToInfo extracts list metadata from the report.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		ID:            r.ID,
		CreatedAt:     r.CreatedAt,
		CandidatePath: r.CandidatePath,
		ReferencePath: r.ReferencePath,
		Shape:         r.Shape,
		Value:         r.Value,
	}
}
