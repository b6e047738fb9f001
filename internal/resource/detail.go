package resource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Detail is the untyped representation of one resource as returned by a
// detail endpoint. Numbers are kept as json.Number so that a rewritten
// detail serialises back exactly as it was received.
type Detail map[string]interface{}

// FieldError reports a key that is missing or has an unexpected type.
type FieldError struct {
	Path []string
	Want string
}

func (e *FieldError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("missing field %s", strings.Join(e.Path, "."))
	}
	return fmt.Sprintf("field %s is not a %s", strings.Join(e.Path, "."), e.Want)
}

// DecodeDetail parses a JSON object into a Detail.
func DecodeDetail(data []byte) (Detail, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var d Detail
	if err := dec.Decode(&d); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the JSON object")
	}
	if d == nil {
		return nil, errors.New("detail body is null")
	}
	return d, nil
}

// Lookup walks path through nested objects.
func (d Detail) Lookup(path ...string) (interface{}, error) {
	var cur interface{} = map[string]interface{}(d)
	for i, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, &FieldError{Path: path[:i], Want: "object"}
		}
		v, ok := m[key]
		if !ok {
			return nil, &FieldError{Path: path[:i+1]}
		}
		cur = v
	}
	return cur, nil
}

// Map returns the object at path.
func (d Detail) Map(path ...string) (map[string]interface{}, error) {
	v, err := d.Lookup(path...)
	if err != nil {
		return nil, err
	}
	m, ok := asMap(v)
	if !ok {
		return nil, &FieldError{Path: path, Want: "object"}
	}
	return m, nil
}

// String returns the string at path. A JSON null is treated as "".
func (d Detail) String(path ...string) (string, error) {
	v, err := d.Lookup(path...)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", &FieldError{Path: path, Want: "string"}
	}
}

// Int returns the integer at path.
func (d Detail) Int(path ...string) (int, error) {
	v, err := d.Lookup(path...)
	if err != nil {
		return 0, err
	}
	n, ok := ToInt(v)
	if !ok {
		return 0, &FieldError{Path: path, Want: "integer"}
	}
	return n, nil
}

// Bool returns the boolean at path.
func (d Detail) Bool(path ...string) (bool, error) {
	v, err := d.Lookup(path...)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &FieldError{Path: path, Want: "boolean"}
	}
	return b, nil
}

// Set replaces the value at path. Every object along path must exist.
func (d Detail) Set(value interface{}, path ...string) error {
	if len(path) == 0 {
		return errors.New("empty path")
	}
	parent, err := d.Map(path[:len(path)-1]...)
	if err != nil {
		return err
	}
	parent[path[len(path)-1]] = value
	return nil
}

// Clone returns a deep copy of d.
func (d Detail) Clone() Detail {
	return Detail(cloneValue(map[string]interface{}(d)).(map[string]interface{}))
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Detail:
		return cloneValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Detail:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

// ToInt converts the numeric types produced by encoding/json to int.
func ToInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
