package job

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Job from run-time parameters.
type Factory func(p Params) (*Job, error)

// entry holds the factory and help text for a registered job.
type entry struct {
	factory     Factory
	description string
}

var (
	mu   sync.RWMutex
	jobs = make(map[string]entry)
)

// Register adds a job to the global registry.
// name is the job identifier used on the command line (e.g. "self-service-policies").
// description is a one-line summary for `jobs list`.
//
// Panics if a job with the same name is already registered.
func Register(name, description string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := jobs[name]; exists {
		panic(fmt.Sprintf("job: %q already registered", name))
	}

	jobs[name] = entry{
		factory:     factory,
		description: description,
	}
}

// Get returns the factory for a registered job.
func Get(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()

	e, ok := jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q; available: %s", name, listNamesLocked())
	}
	return e.factory, nil
}

// Build looks up a job by name and builds it with p.
func Build(name string, p Params) (*Job, error) {
	factory, err := Get(name)
	if err != nil {
		return nil, err
	}
	j, err := factory(p)
	if err != nil {
		return nil, fmt.Errorf("building job %s: %w", name, err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// List returns the names of all registered jobs in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	return listNamesLocked()
}

// Description returns the help text for a registered job.
func Description(name string) string {
	mu.RLock()
	defer mu.RUnlock()

	if e, ok := jobs[name]; ok {
		return e.description
	}
	return ""
}

// listNamesLocked returns sorted job names. Caller must hold mu.
func listNamesLocked() []string {
	names := make([]string, 0, len(jobs))
	for name := range jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
