// Package csv writes job records as CSV.
package csv

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/macadmin-tools/jamfkit/internal/export"
)

// Reporter generates CSV reports.
type Reporter struct{}

// Generate writes a header row of the export's columns, then one row per
// record in export order.
func (r *Reporter) Generate(w io.Writer, e *export.Export) error {
	if len(e.Columns) == 0 {
		return fmt.Errorf("job %s emits whole resource details and has no CSV columns; use json", e.Job)
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(e.Columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, rec := range e.Records {
		row := make([]string, len(e.Columns))
		for i, col := range e.Columns {
			row[i] = Cell(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Cell renders a record value as a CSV cell. Nested values are written as
// JSON.
func Cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}
