// Package json writes job records as JSON.
package json

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Reporter generates JSON reports.
type Reporter struct {
	// Raw writes only the array of records, without the export envelope.
	Raw bool
}

// Generate writes the export (or just its records when Raw is set) as
// indented JSON.
func (r *Reporter) Generate(w io.Writer, e *export.Export) error {
	var v interface{} = e
	if r.Raw {
		records := e.Records
		if records == nil {
			records = []resource.Record{}
		}
		v = records
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON report: %w", err)
	}
	return nil
}
