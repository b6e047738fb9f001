// Package selfservice implements the job that lists the top-level Self
// Service policies available to every computer of a site.
package selfservice

import (
	"errors"

	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Name is the registered job name.
const Name = "self-service-policies"

// OngoingFrequency is the only execution frequency a listed policy may have.
const OngoingFrequency = "Ongoing"

// Endpoint lists policies through the Classic API.
var Endpoint = resource.Endpoint{
	Collection: resource.Policy,
	ListPath:   "/JSSResource/policies",
	ListKey:    []string{"policies"},
	DetailPath: "/JSSResource/policies/id/{id}",
}

// ExcludedCategories are never listed, whatever their Self Service settings.
var ExcludedCategories = map[string]bool{
	"Printers":                  true,
	"Deployment and Enrollment": true,
}

// Columns is the CSV column order.
var Columns = []string{"policy_name", "id", "trigger", "frequency", "self_service_display_name", "category"}

func init() {
	job.Register(Name, "Ongoing Self Service policies scoped to all computers of the source site (CSV)", New)
}

// New builds the job. The source site is required.
func New(p job.Params) (*job.Job, error) {
	if p.SourceSite <= 0 {
		return nil, errors.New("source site is required (--source-site or source_site in the config file)")
	}
	return &job.Job{
		Name:        Name,
		Description: job.Description(Name),
		Endpoint:    Endpoint,
		Transformer: Filter{SourceSite: p.SourceSite},
		Columns:     Columns,
		KeyField:    "policy_name",
		Format:      job.FormatCSV,
	}, nil
}

// Filter accepts policies of SourceSite (or of no site) that are scoped to
// all computers, offered in Self Service with an ongoing frequency and not
// in an excluded category.
type Filter struct {
	SourceSite int
}

// Transform implements job.Transformer. Site and scope are checked before
// any other field is read.
func (f Filter) Transform(d resource.Detail) (resource.Record, error) {
	siteID, err := d.Int("policy", "general", "site", "id")
	if err != nil {
		return nil, err
	}
	allComputers, err := d.Bool("policy", "scope", "all_computers")
	if err != nil {
		return nil, err
	}
	if siteID != resource.NoSite.ID && siteID != f.SourceSite {
		return nil, outcome.Decline("policy belongs to site %d", siteID)
	}
	if !allComputers {
		return nil, outcome.Decline("policy is not scoped to all computers")
	}

	general, err := d.Map("policy", "general")
	if err != nil {
		return nil, err
	}
	g := resource.Detail(general)
	name, err := g.String("name")
	if err != nil {
		return nil, err
	}
	id, err := g.Int("id")
	if err != nil {
		return nil, err
	}
	trigger, err := g.String("trigger")
	if err != nil {
		return nil, err
	}
	frequency, err := g.String("frequency")
	if err != nil {
		return nil, err
	}
	inSelfService, err := d.Bool("policy", "self_service", "use_for_self_service")
	if err != nil {
		return nil, err
	}
	displayName, err := d.String("policy", "self_service", "self_service_display_name")
	if err != nil {
		return nil, err
	}
	category, err := g.String("category", "name")
	if err != nil {
		return nil, err
	}

	switch {
	case ExcludedCategories[category]:
		return nil, outcome.Decline("policy %q is in excluded category %q", name, category)
	case !inSelfService:
		return nil, outcome.Decline("policy %q is not offered in Self Service", name)
	case frequency != OngoingFrequency:
		return nil, outcome.Decline("policy %q runs %s", name, frequency)
	}

	return resource.Record{
		"policy_name":               name,
		"id":                        id,
		"trigger":                   trigger,
		"frequency":                 frequency,
		"self_service_display_name": displayName,
		"category":                  category,
	}, nil
}
