package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/ssimgo/internal/imageio"
	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/cwbudde/ssimgo/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewServer(":0", st, 1)
}

func testImage(width, height int, square color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	white := color.NRGBA{255, 255, 255, 255}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, white)
		}
	}

	for y := height / 3; y < 2*height/3; y++ {
		for x := width / 3; x < 2*width/3; x++ {
			img.Set(x, y, square)
		}
	}
	return img
}

func writeTestImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

// createImagePair writes a reference and a slightly different candidate.
func createImagePair(t *testing.T) (candidate, reference string) {
	t.Helper()
	dir := t.TempDir()
	reference = filepath.Join(dir, "ref.png")
	candidate = filepath.Join(dir, "cand.png")
	writeTestImage(t, reference, testImage(30, 30, color.NRGBA{255, 0, 0, 255}))
	writeTestImage(t, candidate, testImage(30, 30, color.NRGBA{200, 40, 0, 255}))
	return candidate, reference
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("Unexpected health body %v", body)
	}
}

func TestServer_Compare_Identical(t *testing.T) {
	s := newTestServer(t)
	_, ref := createImagePair(t)

	w := doJSON(t, s, http.MethodPost, "/api/v1/compare", CompareRequest{
		CandidatePath: ref,
		ReferencePath: ref,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var report store.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if report.Value < 0.999999 {
		t.Errorf("Identical images should score 1, got %f", report.Value)
	}
	if len(report.Index) != 3 || report.Layout != "rgb" || !report.FastPath {
		t.Errorf("Unexpected report %+v", report)
	}
	if report.MSE != 0 || report.PSNR != nil {
		t.Errorf("Identical images should have MSE 0 and no PSNR, got %f %v", report.MSE, report.PSNR)
	}

	// Unsaved comparisons are not listed
	infos, _ := s.store.ListReports()
	if len(infos) != 0 {
		t.Errorf("Expected no stored reports, got %d", len(infos))
	}
}

func TestServer_Compare_GrayWithParameters(t *testing.T) {
	s := newTestServer(t)
	cand, ref := createImagePair(t)
	radius := 2.0

	w := doJSON(t, s, http.MethodPost, "/api/v1/compare", CompareRequest{
		CandidatePath: cand,
		ReferencePath: ref,
		Layout:        "gray",
		Exponents:     []float64{1, 2, 0.5},
		Radius:        &radius,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var report store.Report
	json.NewDecoder(w.Body).Decode(&report)
	if len(report.Index) != 1 || report.Channels {
		t.Errorf("Gray layout should give a single index, got %v", report.Index)
	}
	if report.FastPath || report.Params.Radius != 2 {
		t.Errorf("Unexpected params %+v fast=%v", report.Params, report.FastPath)
	}
	if report.Value >= 1 {
		t.Errorf("Different images should score below 1, got %f", report.Value)
	}
}

func TestServer_Compare_Validation(t *testing.T) {
	s := newTestServer(t)
	cand, ref := createImagePair(t)
	negative := -1.0

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"missing paths", CompareRequest{}, http.StatusBadRequest},
		{"bad layout", CompareRequest{CandidatePath: cand, ReferencePath: ref, Layout: "cmyk"}, http.StatusBadRequest},
		{"negative radius", CompareRequest{CandidatePath: cand, ReferencePath: ref, Radius: &negative}, http.StatusBadRequest},
		{"short exponents", CompareRequest{CandidatePath: cand, ReferencePath: ref, Exponents: []float64{1}}, http.StatusBadRequest},
		{"negative constant", CompareRequest{CandidatePath: cand, ReferencePath: ref, Constants: []float64{1, -1, 1}}, http.StatusBadRequest},
		{"missing file", CompareRequest{CandidatePath: filepath.Join(t.TempDir(), "nope.png"), ReferencePath: ref}, http.StatusNotFound},
		{"invalid json", "{not json", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if raw, ok := tt.body.(string); ok {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/compare", strings.NewReader(raw))
				w = httptest.NewRecorder()
				s.Router().ServeHTTP(w, req)
			} else {
				w = doJSON(t, s, http.MethodPost, "/api/v1/compare", tt.body)
			}
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_Compare_ShapeMismatch(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeTestImage(t, a, testImage(20, 20, color.NRGBA{0, 0, 0, 255}))
	writeTestImage(t, b, testImage(21, 20, color.NRGBA{0, 0, 0, 255}))

	w := doJSON(t, s, http.MethodPost, "/api/v1/compare", CompareRequest{CandidatePath: a, ReferencePath: b})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "shape mismatch") {
		t.Errorf("Expected shape mismatch message, got %s", w.Body.String())
	}
}

func TestServer_ReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	cand, ref := createImagePair(t)

	// Save
	w := doJSON(t, s, http.MethodPost, "/api/v1/compare", CompareRequest{
		CandidatePath: cand,
		ReferencePath: ref,
		Save:          true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var saved store.Report
	json.NewDecoder(w.Body).Decode(&saved)
	if saved.ID == "" {
		t.Fatal("Report ID should not be empty")
	}

	// List
	w = doJSON(t, s, http.MethodGet, "/api/v1/reports", nil)
	var infos []store.ReportInfo
	json.NewDecoder(w.Body).Decode(&infos)
	if len(infos) != 1 || infos[0].ID != saved.ID {
		t.Fatalf("Expected saved report in list, got %+v", infos)
	}

	// Get
	w = doJSON(t, s, http.MethodGet, "/api/v1/reports/"+saved.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var loaded store.Report
	json.NewDecoder(w.Body).Decode(&loaded)
	if loaded.Value != saved.Value || loaded.CandidatePath != cand {
		t.Errorf("Loaded report mismatch: %+v", loaded)
	}

	// Map
	w = doJSON(t, s, http.MethodGet, "/api/v1/reports/"+saved.ID+"/map", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var m MapResponse
	json.NewDecoder(w.Body).Decode(&m)
	if len(m.Shape) != 3 || m.Shape[0] != 30 || !m.Channels || len(m.Data) != 30*30*3 {
		t.Errorf("Unexpected map shape %v channels=%v len=%d", m.Shape, m.Channels, len(m.Data))
	}

	// Map image
	w = doJSON(t, s, http.MethodGet, "/api/v1/reports/"+saved.ID+"/map.png", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatalf("Failed to decode map image: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 30 {
		t.Errorf("Unexpected map image bounds %v", img.Bounds())
	}

	// Delete
	w = doJSON(t, s, http.MethodDelete, "/api/v1/reports/"+saved.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/reports/"+saved.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after delete, got %d", w.Code)
	}
}

func TestServer_Reports_NotFound(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/reports/missing",
		"/api/v1/reports/missing/map",
		"/api/v1/reports/missing/map.png",
	} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected 404, got %d", path, w.Code)
		}
	}

	w := doJSON(t, s, http.MethodDelete, "/api/v1/reports/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("DELETE: expected 404, got %d", w.Code)
	}
}

func TestServer_Reports_InvalidID(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/v1/reports/..",
		"/api/v1/reports/../map",
		"/api/v1/reports/../map.png",
	} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", path, w.Code)
		}
	}

	w := doJSON(t, s, http.MethodDelete, "/api/v1/reports/..", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("DELETE: expected 400, got %d", w.Code)
	}
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		fw.Write(data)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestServer_CompareUpload(t *testing.T) {
	s := newTestServer(t)
	ref := encodePNG(t, testImage(24, 24, color.NRGBA{0, 0, 255, 255}))
	cand := encodePNG(t, testImage(24, 24, color.NRGBA{0, 60, 200, 255}))

	body, contentType := multipartBody(t,
		map[string][]byte{"candidate": cand, "reference": ref},
		map[string]string{"layout": "gray", "radius": "1.0", "save": "true"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var report store.Report
	json.NewDecoder(w.Body).Decode(&report)
	if report.CandidatePath != "candidate.png" || report.Params.Radius != 1 || len(report.Index) != 1 {
		t.Errorf("Unexpected report %+v", report)
	}
	if _, err := s.store.LoadReport(report.ID); err != nil {
		t.Errorf("Uploaded report should be stored: %v", err)
	}
}

func TestServer_CompareUpload_Errors(t *testing.T) {
	s := newTestServer(t)
	pngData := encodePNG(t, testImage(8, 8, color.NRGBA{0, 0, 0, 255}))

	tests := []struct {
		name   string
		files  map[string][]byte
		fields map[string]string
		status int
	}{
		{"missing reference", map[string][]byte{"candidate": pngData}, nil, http.StatusBadRequest},
		{"garbage image", map[string][]byte{"candidate": pngData, "reference": []byte("nope")}, nil, http.StatusBadRequest},
		{"bad radius", map[string][]byte{"candidate": pngData, "reference": pngData}, map[string]string{"radius": "wide"}, http.StatusBadRequest},
		{"bad layout", map[string][]byte{"candidate": pngData, "reference": pngData}, map[string]string{"layout": "hsv"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.files, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/compare/upload", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestServer_CompareUpload_TooLarge(t *testing.T) {
	s := newTestServer(t) // 1 MB limit
	big := bytes.Repeat([]byte{0}, 2<<20)

	body, contentType := multipartBody(t, map[string][]byte{"candidate": big, "reference": big}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/compare/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge && w.Code != http.StatusBadRequest {
		t.Errorf("Expected 413 or 400, got %d", w.Code)
	}
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/compare", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Missing CORS header")
	}
}

func TestServer_Index(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "No reports saved yet") {
		t.Fatalf("Unexpected empty index: %d %s", w.Code, w.Body.String())
	}

	cand, ref := createImagePair(t)
	r := doJSON(t, s, http.MethodPost, "/api/v1/compare", CompareRequest{CandidatePath: cand, ReferencePath: ref, Save: true})
	var saved store.Report
	json.NewDecoder(r.Body).Decode(&saved)

	w = doJSON(t, s, http.MethodGet, "/", nil)
	body := w.Body.String()
	if !strings.Contains(body, saved.ID) || !strings.Contains(body, "/map.png") {
		t.Errorf("Index should list saved report %s", saved.ID)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %s", ct)
	}
}

func TestReportList_EscapesPaths(t *testing.T) {
	var buf bytes.Buffer
	err := reportList([]store.ReportInfo{{ID: "x", CandidatePath: "<script>"}}).Render(t.Context(), &buf)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Error("Candidate path should be escaped")
	}
}

func TestReportList_Rows(t *testing.T) {
	var buf bytes.Buffer
	items := []store.ReportInfo{
		{ID: "first", Shape: []int{4, 4}, Value: 0.5},
		{ID: `q"id`, Shape: []int{2, 2, 3}, Value: 1},
	}
	if err := reportList(items).Render(t.Context(), &buf); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	body := buf.String()
	if strings.Count(body, "<tr>") != 3 {
		t.Errorf("Expected header plus 2 rows, got %s", body)
	}
	if !strings.Contains(body, `href="/api/v1/reports/first/map.png"`) || !strings.Contains(body, "0.5000") {
		t.Errorf("Missing row content: %s", body)
	}
	if strings.Contains(body, `q"id`) {
		t.Error("Quote in ID should be escaped")
	}
	if !strings.HasPrefix(body, "<!DOCTYPE html>") || !strings.HasSuffix(body, "</body></html>") {
		t.Errorf("Page shell missing: %s", body)
	}
}

func TestMapImage(t *testing.T) {
	m, _ := ssim.NewArray(ssim.DTypeFloat64, []int{1, 3}, []float64{-1, 0, 1}, false)

	img, err := mapImage(m)
	if err != nil {
		t.Fatalf("mapImage failed: %v", err)
	}
	want := []uint8{0, 128, 255}
	for x, v := range want {
		if got := img.GrayAt(x, 0).Y; got != v {
			t.Errorf("pixel %d = %d, want %d", x, got, v)
		}
	}

	vol, _ := ssim.NewArray(ssim.DTypeFloat64, []int{2, 2, 2}, make([]float64, 8), false)
	if _, err := mapImage(vol); !errors.Is(err, ssim.ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for 3-D map, got %v", err)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ssim.ShapeError{}, http.StatusBadRequest},
		{&ssim.ParameterError{Name: "radius"}, http.StatusBadRequest},
		{&ssim.TypeError{DType: ssim.DTypeBool}, http.StatusBadRequest},
		{fmt.Errorf("load: %w", imageio.ErrDecode), http.StatusBadRequest},
		{&store.InvalidIDError{ID: "a/.."}, http.StatusBadRequest},
		{&store.NotFoundError{ID: "x"}, http.StatusNotFound},
		{fmt.Errorf("open: %w", os.ErrNotExist), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
