// Package html generates self-contained HTML reports of job records.
package html

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/report/csv"
)

//go:embed templates/*.html
var templateFS embed.FS

// ReportData contains all data passed to the HTML template.
type ReportData struct {
	Title       string
	GeneratedAt string
	InstanceURL string
	Job         string
	RunID       string
	Columns     []string
	Rows        [][]string
	Summary     outcome.Summary
	ReasonStats []ReasonStat
}

// ReasonStat is the number of resources with one outcome.
type ReasonStat struct {
	Reason outcome.Reason
	Count  int
}

// Reporter generates HTML reports.
type Reporter struct{}

// Generate writes an HTML report to the given writer. Jobs without columns
// get a single column holding each record as JSON.
func (r *Reporter) Generate(w io.Writer, e *export.Export) error {
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"reasonClass": reasonClass,
	}).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}

	columns := e.Columns
	rows := make([][]string, 0, len(e.Records))
	if len(columns) == 0 {
		columns = []string{"record"}
		for _, rec := range e.Records {
			rows = append(rows, []string{csv.Cell(map[string]interface{}(rec))})
		}
	} else {
		for _, rec := range e.Records {
			row := make([]string, len(columns))
			for i, col := range columns {
				row[i] = csv.Cell(rec[col])
			}
			rows = append(rows, row)
		}
	}

	var stats []ReasonStat
	for _, reason := range outcome.Reasons {
		if n := e.Summary.ByReason[reason]; n > 0 {
			stats = append(stats, ReasonStat{Reason: reason, Count: n})
		}
	}

	data := ReportData{
		Title:       fmt.Sprintf("jamfkit: %s", e.Job),
		GeneratedAt: e.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		InstanceURL: e.InstanceURL,
		Job:         e.Job,
		RunID:       e.RunID,
		Columns:     columns,
		Rows:        rows,
		Summary:     e.Summary,
		ReasonStats: stats,
	}
	if e.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	}

	return tmpl.Execute(w, data)
}

func reasonClass(r outcome.Reason) string {
	switch r {
	case outcome.Accepted:
		return "accepted"
	case outcome.Declined:
		return "declined"
	default:
		return "failed"
	}
}
