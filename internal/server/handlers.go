package server

import (
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/cwbudde/ssimgo/internal/config"
	"github.com/cwbudde/ssimgo/internal/imageio"
	"github.com/cwbudde/ssimgo/internal/metric"
	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/cwbudde/ssimgo/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	CandidatePath string    `json:"candidatePath"`
	ReferencePath string    `json:"referencePath"`
	Layout        string    `json:"layout,omitempty"`
	Exponents     []float64 `json:"exponents,omitempty"`
	Constants     []float64 `json:"constants,omitempty"`
	Radius        *float64  `json:"radius,omitempty"`
	Save          bool      `json:"save,omitempty"`
}

// Options converts the request parameters into engine options.
func (req CompareRequest) Options() (ssim.Options, error) {
	return config.Preset{
		Exponents: req.Exponents,
		Constants: req.Constants,
		Radius:    req.Radius,
	}.Options()
}

// MapResponse is the JSON form of a stored SSIM map.
type MapResponse struct {
	Shape    []int     `json:"shape"`
	Channels bool      `json:"channels"`
	Data     []float64 `json:"data"`
}

// handleHealth handles GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCompare handles POST /api/v1/compare
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	// Validate request
	if req.CandidatePath == "" || req.ReferencePath == "" {
		respondError(w, http.StatusBadRequest, "candidatePath and referencePath are required")
		return
	}
	layout, err := imageio.ParseLayout(req.Layout)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := req.Options()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidate, reference, err := imageio.LoadPair(req.CandidatePath, req.ReferencePath, layout)
	if err != nil {
		writeError(w, err)
		return
	}

	s.compare(w, candidate, reference, opts, req.Save, func(rep *store.Report) {
		rep.CandidatePath = req.CandidatePath
		rep.ReferencePath = req.ReferencePath
		rep.Layout = string(layout)
	})
}

// handleCompareUpload handles POST /api/v1/compare/upload
func (s *Server) handleCompareUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		status := errorStatus(err)
		if status != http.StatusRequestEntityTooLarge {
			status = http.StatusBadRequest
		}
		respondError(w, status, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	layout, err := imageio.ParseLayout(r.FormValue("layout"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts ssim.Options
	if v := r.FormValue("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid radius %q", v))
			return
		}
		opts.Radius = &radius
	}
	save, _ := strconv.ParseBool(r.FormValue("save"))

	candidate, candidateName, err := decodeFormImage(r, "candidate", layout)
	if err != nil {
		writeError(w, err)
		return
	}
	reference, referenceName, err := decodeFormImage(r, "reference", layout)
	if err != nil {
		writeError(w, err)
		return
	}
	candidate, reference = imageio.MatchDepth(candidate, reference)

	s.compare(w, candidate, reference, opts, save, func(rep *store.Report) {
		rep.CandidatePath = candidateName
		rep.ReferencePath = referenceName
		rep.Layout = string(layout)
	})
}

// decodeFormImage decodes the uploaded file in field and returns it with
// the client-supplied filename.
func decodeFormImage(r *http.Request, field string, layout imageio.Layout) (*ssim.Array, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: missing form file %q", imageio.ErrDecode, field)
	}
	defer file.Close()

	arr, format, err := imageio.Decode(file, layout)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", field, err)
	}

	slog.Debug("Decoded upload", "field", field, "filename", filename(header), "format", format, "shape", arr.Shape)
	return arr, filename(header), nil
}

func filename(h *multipart.FileHeader) string {
	if h == nil {
		return ""
	}
	return h.Filename
}

// compare evaluates the pair, optionally persists the report and writes it.
func (s *Server) compare(w http.ResponseWriter, candidate, reference *ssim.Array, opts ssim.Options, save bool, annotate func(*store.Report)) {
	ev, err := metric.Evaluate(candidate, reference, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	report := store.NewReport(uuid.NewString(), ev.Result, reference, ev.MSE, ev.PSNR)
	annotate(report)

	if !save {
		respondJSON(w, http.StatusOK, report)
		return
	}

	if err := s.store.SaveReport(report, ev.Result.Map); err != nil {
		writeError(w, fmt.Errorf("failed to save report: %w", err))
		return
	}
	slog.Info("Report saved", "id", report.ID, "ssim", report.Value)
	respondJSON(w, http.StatusCreated, report)
}

// handleListReports handles GET /api/v1/reports
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.ListReports()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

// handleGetReport handles GET /api/v1/reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.LoadReport(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleGetMap handles GET /api/v1/reports/{id}/map
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.LoadMap(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, MapResponse{
		Shape:    m.Shape,
		Channels: m.Channels,
		Data:     m.Data,
	})
}

// handleGetMapImage handles GET /api/v1/reports/{id}/map.png
func (s *Server) handleGetMapImage(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.LoadMap(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := mapImage(m)
	if err != nil {
		writeError(w, err)
		return
	}

	// Set headers
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")

	// Encode and send
	if err := png.Encode(w, img); err != nil {
		slog.Error("Failed to encode PNG", "error", err)
	}
}

// handleDeleteReport handles DELETE /api/v1/reports/{id}
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReport(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
