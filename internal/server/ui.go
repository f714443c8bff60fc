package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/cwbudde/ssimgo/internal/store"
)

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	infos, err := s.store.ListReports()
	if err != nil {
		http.Error(w, "Failed to list reports", http.StatusInternalServerError)
		return
	}

	// Render the report list page
	if err := reportList(infos).Render(r.Context(), w); err != nil {
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
}

// reportList renders saved reports as an HTML table with links to the
// JSON report and the rendered map.
func reportList(items []store.ReportInfo) templ.Component {
	var body templ.Component = emptyState()
	if len(items) > 0 {
		rows := make([]templ.Component, len(items))
		for i, it := range items {
			rows[i] = reportRow(it)
		}
		body = reportTable(templ.Join(rows...))
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return layout("SSIM reports").Render(templ.WithChildren(ctx, body), w)
	})
}

// layout wraps the children in the page shell.
func layout(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)

		t := templ.EscapeString(title)
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title></head><body><h1>%s</h1>`, t, t); err != nil {
			return err
		}
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func emptyState() templ.Component {
	return templ.Raw(`<p>No reports saved yet.</p>`)
}

func reportTable(rows templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<table><thead><tr><th>ID</th><th>Created</th><th>Candidate</th><th>Reference</th><th>Shape</th><th>SSIM</th><th>Map</th></tr></thead><tbody>`); err != nil {
			return err
		}
		if err := rows.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}

func reportRow(it store.ReportInfo) templ.Component {
	reportURL := templ.URL("/api/v1/reports/" + it.ID)
	mapURL := templ.URL("/api/v1/reports/" + it.ID + "/map.png")

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<tr><td><a href="%s">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%.4f</td><td><a href="%s">png</a></td></tr>`,
			templ.EscapeString(string(reportURL)),
			templ.EscapeString(it.ID),
			templ.EscapeString(it.CreatedAt.Format("2006-01-02 15:04:05")),
			templ.EscapeString(it.CandidatePath),
			templ.EscapeString(it.ReferencePath),
			templ.EscapeString(fmt.Sprint(it.Shape)),
			it.Value,
			templ.EscapeString(string(mapURL)),
		)
		return err
	})
}
