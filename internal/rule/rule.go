// Package rule evaluates YAML-declared field conditions and jq projections
// against resource details. It backs user-defined jobs.
package rule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Condition operators.
const (
	Equals    = "equals"
	NotEquals = "not_equals"
	In        = "in"
	NotIn     = "not_in"
	Contains  = "contains"
	Empty     = "empty"
	NotEmpty  = "not_empty"
	True      = "true"
	False     = "false"
)

// Condition describes a test on one detail field. Field is a dotted key path
// such as "policy.general.site.id".
type Condition struct {
	Field    string   `yaml:"field"`
	Operator string   `yaml:"operator"` // see the operator constants
	Value    string   `yaml:"value,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

func (c Condition) String() string {
	switch c.Operator {
	case In, NotIn:
		return fmt.Sprintf("%s %s [%s]", c.Field, c.Operator, strings.Join(c.Values, ", "))
	case Empty, NotEmpty, True, False:
		return fmt.Sprintf("%s is %s", c.Field, c.Operator)
	}
	return fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
}

// Path splits Field into its keys.
func (c Condition) Path() []string {
	return strings.Split(c.Field, ".")
}

// Validate checks the operator and its operands.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition has no field")
	}
	switch c.Operator {
	case Equals, NotEquals, Contains:
	case In, NotIn:
		if len(c.Values) == 0 {
			return fmt.Errorf("condition on %s: operator %s needs values", c.Field, c.Operator)
		}
	case Empty, NotEmpty, True, False:
	default:
		return fmt.Errorf("condition on %s: unknown operator %q", c.Field, c.Operator)
	}
	return nil
}

// Match reports whether d satisfies c. A field that does not exist is an
// error (*resource.FieldError), never a mismatch.
func (c Condition) Match(d resource.Detail) (bool, error) {
	v, err := d.Lookup(c.Path()...)
	if err != nil {
		return false, err
	}

	switch c.Operator {
	case True, False:
		b, ok := v.(bool)
		if !ok {
			return false, &resource.FieldError{Path: c.Path(), Want: "boolean"}
		}
		return b == (c.Operator == True), nil
	case Empty:
		return isEmpty(v), nil
	case NotEmpty:
		return !isEmpty(v), nil
	}

	s, ok := scalarString(v)
	if !ok {
		return false, &resource.FieldError{Path: c.Path(), Want: "scalar"}
	}
	switch c.Operator {
	case Equals:
		return s == c.Value, nil
	case NotEquals:
		return s != c.Value, nil
	case Contains:
		return strings.Contains(s, c.Value), nil
	case In:
		return contains(c.Values, s), nil
	case NotIn:
		return !contains(c.Values, s), nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Operator)
}

// FirstMismatch evaluates conditions in order and returns the first one d
// does not satisfy, or nil if it satisfies all of them.
func FirstMismatch(d resource.Detail, conditions []Condition) (*Condition, error) {
	for i := range conditions {
		ok, err := conditions[i].Match(d)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &conditions[i], nil
		}
	}
	return nil, nil
}

// scalarString renders strings, numbers and booleans for comparison. JSON
// null renders as "".
func scalarString(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", val), true
	case nil:
		return "", true
	}
	return "", false
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}
	return false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// Field is one output column computed by a jq expression.
type Field struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

// Projector computes records from details with compiled jq expressions.
type Projector struct {
	names []string
	codes []*gojq.Code
}

// NewProjector parses and compiles every field expression.
func NewProjector(fields []Field) (*Projector, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to project")
	}
	p := &Projector{}
	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field with expression %q has no name", f.Expr)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		query, err := gojq.Parse(f.Expr)
		if err != nil {
			return nil, fmt.Errorf("parsing expression for %s: %w", f.Name, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("compiling expression for %s: %w", f.Name, err)
		}
		p.names = append(p.names, f.Name)
		p.codes = append(p.codes, code)
	}
	return p, nil
}

// Columns returns the field names in declaration order.
func (p *Projector) Columns() []string {
	return append([]string(nil), p.names...)
}

// Project evaluates every expression against d and keeps the first value
// each one produces. A path that does not exist evaluates to null, as in jq.
func (p *Projector) Project(d resource.Detail) (resource.Record, error) {
	input, err := plain(d)
	if err != nil {
		return nil, err
	}

	rec := make(resource.Record, len(p.names))
	for i, code := range p.codes {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			rec[p.names[i]] = nil
			continue
		}
		if err, ok := v.(error); ok {
			if herr, ok := err.(*gojq.HaltError); ok && herr.Value() == nil {
				rec[p.names[i]] = nil
				continue
			}
			return nil, fmt.Errorf("evaluating %s: %w", p.names[i], err)
		}
		rec[p.names[i]] = v
	}
	return rec, nil
}

// plain converts d into the generic JSON values gojq operates on.
func plain(d resource.Detail) (interface{}, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
