// Package job defines extraction jobs and the registry they are looked up in.
//
// A job pairs an endpoint (what to enumerate and fetch) with a transformer
// (which resources to keep and what to emit for them). Built-in jobs register
// a factory from an init() function in their own subpackage:
//
//  1. Create internal/job/<name>/ with a Transformer implementation.
//  2. Call job.Register("<name>", description, factory) in an init() function.
//  3. Blank-import the package in cmd/jamfkit/jobs.go.
package job

import (
	"fmt"

	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Transformer filters and projects one resource detail. A rejected resource
// is reported as an *outcome.Skip with reason Declined; a missing key as a
// *resource.FieldError.
type Transformer interface {
	Transform(d resource.Detail) (resource.Record, error)
}

// TransformFunc adapts a function to the Transformer interface.
type TransformFunc func(d resource.Detail) (resource.Record, error)

// Transform implements Transformer.
func (f TransformFunc) Transform(d resource.Detail) (resource.Record, error) {
	return f(d)
}

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatHTML = "html"
)

// Job is a configured extraction.
type Job struct {
	Name        string
	Description string
	Endpoint    resource.Endpoint
	Transformer Transformer
	// Columns is the fixed field order for CSV output. Nil for jobs that
	// emit whole details.
	Columns []string
	// KeyField, if set, gives records mapping semantics: a later record with
	// the same key replaces the earlier one.
	KeyField string
	// Format is the default output format.
	Format string
	// Raw makes JSON output a bare array of records by default, for jobs
	// whose records are whole details meant to be imported elsewhere.
	Raw bool
}

// Validate checks that the job can run.
func (j *Job) Validate() error {
	if j.Transformer == nil {
		return fmt.Errorf("job %s has no transformer", j.Name)
	}
	if err := j.Endpoint.Validate(); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	if j.Format == FormatCSV && len(j.Columns) == 0 {
		return fmt.Errorf("job %s: csv output needs columns", j.Name)
	}
	return nil
}

// Params carries the run-time settings a factory may need.
type Params struct {
	// SourceSite is the site migrated to the "None" site.
	SourceSite int
	// SearchID selects an advanced search to enumerate. Zero lists the
	// whole collection.
	SearchID int
}
