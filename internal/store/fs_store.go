package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/ssimgo/internal/ssim"
)

// FSStore implements the Store interface using filesystem-based persistence.
// Reports are stored in a directory structure: <baseDir>/reports/<id>/
//
// Thread-safety: This implementation uses atomic file operations (rename)
// and does not require locks.
type FSStore struct {
	baseDir string // Root directory for all report data (e.g., "./data")
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

func (fs *FSStore) reportsDir() string {
	return filepath.Join(fs.baseDir, "reports")
}

func (fs *FSStore) reportDir(id string) string {
	return filepath.Join(fs.reportsDir(), id)
}

func (fs *FSStore) reportPath(id string) string {
	return filepath.Join(fs.reportDir(id), "report.json")
}

func (fs *FSStore) mapPath(id string) string {
	return filepath.Join(fs.reportDir(id), "map.bin")
}

// validID rejects IDs that would escape the reports directory.
func validID(id string) error {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return &InvalidIDError{ID: id}
	}
	return nil
}

// writeAtomic writes via a temp file and renames it into place.
func writeAtomic(path string, write func(f *os.File) error) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveReport atomically saves a report and optionally its map.
// The map is written first so a visible report.json always has its map.
func (fs *FSStore) SaveReport(report *Report, m *ssim.Array) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if err := validID(report.ID); err != nil {
		return err
	}

	dir := fs.reportDir(report.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	if m != nil {
		err := writeAtomic(fs.mapPath(report.ID), func(f *os.File) error {
			if err := WriteMap(f, m); err != nil {
				return fmt.Errorf("failed to write map: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	err = writeAtomic(fs.reportPath(report.ID), func(f *os.File) error {
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("Report saved", "id", report.ID, "path", fs.reportPath(report.ID), "with_map", m != nil)
	return nil
}

// LoadReport retrieves the report with the given ID.
func (fs *FSStore) LoadReport(id string) (*Report, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	path := fs.reportPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	slog.Debug("Report loaded", "id", id, "path", path)
	return &report, nil
}

// LoadMap retrieves the SSIM map stored with a report.
func (fs *FSStore) LoadMap(id string) (*ssim.Array, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	f, err := os.Open(fs.mapPath(id))
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to open map file: %w", err)
	}
	defer f.Close()

	m, err := ReadMap(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode map: %w", err)
	}
	return m, nil
}

// ListReports returns metadata for all stored reports, newest first.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	entries, err := os.ReadDir(fs.reportsDir())
	if os.IsNotExist(err) {
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	infos := []ReportInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()
		if _, err := os.Stat(fs.reportPath(id)); os.IsNotExist(err) {
			continue // Skip directories without report.json
		}

		report, err := fs.LoadReport(id)
		if err != nil {
			slog.Warn("Failed to load report for listing", "id", id, "error", err)
			continue // Skip corrupted reports
		}
		infos = append(infos, report.ToInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

// DeleteReport removes the report and all associated artifacts.
func (fs *FSStore) DeleteReport(id string) error {
	if err := validID(id); err != nil {
		return err
	}

	dir := fs.reportDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat report directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove report directory: %w", err)
	}

	slog.Debug("Report deleted", "id", id, "path", dir)
	return nil
}
