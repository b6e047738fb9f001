// Package custom loads jobs declared in YAML files.
//
// A definition names an endpoint, an optional list of field conditions that
// every detail must satisfy and the fields to project with jq:
//
//	name: disabled-policies
//	collection: policy
//	list_path: /JSSResource/policies
//	list_key: [policies]
//	detail_path: /JSSResource/policies/id/{id}
//	where:
//	  - field: policy.general.enabled
//	    operator: "false"
//	fields:
//	  - name: id
//	    expr: .policy.general.id
//
// Without fields the whole detail is emitted.
package custom

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
	"github.com/macadmin-tools/jamfkit/internal/rule"
	"gopkg.in/yaml.v3"
)

// Definition is a job loaded from YAML.
type Definition struct {
	resource.Endpoint `yaml:",inline"`

	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Where       []rule.Condition `yaml:"where,omitempty"`
	Fields      []rule.Field     `yaml:"fields,omitempty"`
	Key         string           `yaml:"key,omitempty"` // must name one of Fields
	Format      string           `yaml:"format,omitempty"`
	Enabled     *bool            `yaml:"enabled,omitempty"`
}

// IsEnabled returns whether the definition is enabled (defaults to true).
func (d *Definition) IsEnabled() bool {
	if d.Enabled == nil {
		return true
	}
	return *d.Enabled
}

// Parse decodes and checks a single definition.
func Parse(data []byte) (*Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.Name == "" {
		return nil, fmt.Errorf("job has no name")
	}
	if _, err := resource.ParseCollection(string(d.Collection)); err != nil {
		return nil, fmt.Errorf("job %s: %w", d.Name, err)
	}
	for _, c := range d.Where {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("job %s: %w", d.Name, err)
		}
	}
	return &d, nil
}

// LoadFile reads a definition from path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return d, nil
}

// LoadFS loads every .yaml and .yml definition in fsys.
func LoadFS(fsys fs.FS) ([]*Definition, error) {
	var defs []*Definition

	err := fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading job file %s: %w", p, err)
		}
		d, err := Parse(data)
		if err != nil {
			return fmt.Errorf("parsing job file %s: %w", p, err)
		}
		defs = append(defs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// RegisterFS registers every enabled definition in fsys with the job
// registry.
func RegisterFS(fsys fs.FS) error {
	defs, err := LoadFS(fsys)
	if err != nil {
		return err
	}
	for _, d := range defs {
		if !d.IsEnabled() {
			continue
		}
		def := d
		job.Register(def.Name, def.Description, func(job.Params) (*job.Job, error) {
			return def.Job()
		})
	}
	return nil
}

// Job builds the runnable job for the definition.
func (d *Definition) Job() (*job.Job, error) {
	t := &Transformer{where: d.Where}
	var columns []string
	if len(d.Fields) > 0 {
		p, err := rule.NewProjector(d.Fields)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", d.Name, err)
		}
		t.projector = p
		columns = p.Columns()
	}

	format := d.Format
	if format == "" {
		format = job.FormatJSON
		if columns != nil {
			format = job.FormatCSV
		}
	}
	if d.Key != "" && columns != nil && !contains(columns, d.Key) {
		return nil, fmt.Errorf("job %s: key %q is not a projected field", d.Name, d.Key)
	}

	return &job.Job{
		Name:        d.Name,
		Description: d.Description,
		Endpoint:    d.Endpoint,
		Transformer: t,
		Columns:     columns,
		KeyField:    d.Key,
		Format:      format,
		Raw:         columns == nil,
	}, nil
}

// Transformer applies a definition's conditions and projection.
type Transformer struct {
	where     []rule.Condition
	projector *rule.Projector
}

// Transform implements job.Transformer.
func (t *Transformer) Transform(d resource.Detail) (resource.Record, error) {
	failed, err := rule.FirstMismatch(d, t.where)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, outcome.Decline("condition not met: %s", failed)
	}
	if t.projector == nil {
		return resource.Record(d.Clone()), nil
	}
	return t.projector.Project(d)
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
