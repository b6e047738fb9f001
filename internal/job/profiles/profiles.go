// Package profiles implements the configuration profile site migration job.
//
// Profiles scoped to the source site are detached from it (rewritten to the
// "None" site) so they can be imported into another Jamf instance; profiles
// that already have no site pass through unchanged and every other profile
// is left out.
package profiles

import (
	"errors"

	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Name is the registered job name.
const Name = "profile-site-migration"

// Endpoint lists macOS configuration profiles and fetches their general subset.
var Endpoint = resource.Endpoint{
	Collection: resource.Profile,
	ListPath:   "/JSSResource/osxconfigurationprofiles",
	ListKey:    []string{"os_x_configuration_profiles"},
	DetailPath: "/JSSResource/osxconfigurationprofiles/id/{id}/subset/general",
}

var (
	siteIDPath   = []string{"os_x_configuration_profile", "general", "site", "id"}
	siteNamePath = []string{"os_x_configuration_profile", "general", "site", "name"}
)

func init() {
	job.Register(Name, "Detach macOS configuration profiles from the source site for import elsewhere (JSON)", New)
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
		Transformer: SiteMigration{SourceSite: p.SourceSite},
		Format:      job.FormatJSON,
		Raw:         true,
	}, nil
}

// SiteMigration rewrites profiles from SourceSite to the "None" site.
type SiteMigration struct {
	SourceSite int
}

// Transform implements job.Transformer. The input detail is never modified;
// a rewritten profile is a deep copy.
func (m SiteMigration) Transform(d resource.Detail) (resource.Record, error) {
	siteID, err := d.Int(siteIDPath...)
	if err != nil {
		return nil, err
	}

	switch siteID {
	case resource.NoSite.ID:
		return resource.Record(d), nil
	case m.SourceSite:
		out := d.Clone()
		if err := out.Set(resource.NoSite.ID, siteIDPath...); err != nil {
			return nil, err
		}
		if err := out.Set(resource.NoSite.Name, siteNamePath...); err != nil {
			return nil, err
		}
		return resource.Record(out), nil
	default:
		return nil, outcome.Decline("profile belongs to site %d", siteID)
	}
}
