// Package export defines the persisted result of a job run.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Export is a point-in-time result of one job run against a Jamf instance.
type Export struct {
	// Job is the name of the job that produced the records.
	Job string `json:"job"`
	// Collection is the collection the job enumerated.
	Collection resource.Collection `json:"collection"`
	// InstanceURL is the Jamf Pro server that was queried.
	InstanceURL string `json:"instance_url"`
	// RunID identifies the run in logs and output.
	RunID string `json:"run_id"`
	// GeneratedAt is when the export was created.
	GeneratedAt time.Time `json:"generated_at"`
	// Columns is the fixed field order for flat outputs. Empty for jobs that
	// emit whole resource details.
	Columns []string `json:"columns,omitempty"`
	// KeyField names the field records are keyed by, if any.
	KeyField string `json:"key_field,omitempty"`
	// Summary holds per-reason counts and skipped resources.
	Summary outcome.Summary `json:"summary"`
	// Records contains the accepted records in listing order.
	Records []resource.Record `json:"records"`
}

// New creates an empty export.
func New(job string, collection resource.Collection, instanceURL, runID string) *Export {
	return &Export{
		Job:         job,
		Collection:  collection,
		InstanceURL: instanceURL,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Summary:     outcome.NewSummary(),
		Records:     []resource.Record{},
	}
}

// Find returns the first record whose field equals value.
func (e *Export) Find(field, value string) (resource.Record, bool) {
	for _, r := range e.Records {
		if v, ok := r[field]; ok && fmt.Sprintf("%v", v) == value {
			return r, true
		}
	}
	return nil, false
}

// Load reads an export from a JSON file.
func Load(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}
	// Numbers stay json.Number so record values print as they were saved.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var e Export
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("parsing export file: %w", err)
	}
	return &e, nil
}

// Save writes the export to a JSON file readable only by the owner.
func Save(e *Export, path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
