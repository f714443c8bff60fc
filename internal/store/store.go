package store

import (
	"fmt"

	"github.com/cwbudde/ssimgo/internal/ssim"
)

// Store defines the interface for report persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a report doesn't exist (for Load/Delete)
//   - Return ErrInvalidID if an ID is empty or names a path outside the store
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically saves a report and its SSIM map. An existing
	// report with the same ID is overwritten. m may be nil to store the
	// summary only.
	SaveReport(report *Report, m *ssim.Array) error

	// LoadReport retrieves the report with the given ID.
	LoadReport(id string) (*Report, error)

	// LoadMap retrieves the SSIM map stored with a report.
	// Returns ErrNotFound if the report has no map.
	LoadMap(id string) (*ssim.Array, error)

	// ListReports returns all stored reports, newest first.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes the report and its map.
	DeleteReport(id string) error
}

// ErrNotFound is returned when a requested report does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report error.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "report not found: " + e.ID
	}
	return "report not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// ErrInvalidID is returned for IDs that are empty or would escape the
// reports directory.
var ErrInvalidID = &InvalidIDError{}

// InvalidIDError represents a malformed report ID.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	if e.ID == "" {
		return "report id cannot be empty"
	}
	return fmt.Sprintf("invalid report id %q", e.ID)
}

func (e *InvalidIDError) Is(target error) bool {
	_, ok := target.(*InvalidIDError)
	return ok
}
