// Package resource defines the data model shared by the Jamf client, the
// record transformers and the migrator.
package resource

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Collection identifies a top-level Jamf Pro resource collection.
type Collection string

const (
	Profile      Collection = "profile"
	Policy       Collection = "policy"
	Computer     Collection = "computer"
	MobileDevice Collection = "mobile_device"
)

// ParseCollection maps a collection name to a Collection.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(strings.ToLower(strings.TrimSpace(s))); c {
	case Profile, Policy, Computer, MobileDevice:
		return c, nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

// Credential is a bearer token obtained once per run.
type Credential struct {
	// Token is the opaque bearer string.
	Token string
	// ExpiresAt is when the token stops being valid. Zero if unknown.
	ExpiresAt time.Time
}

// Header returns the Authorization header value for the credential.
func (c Credential) Header() string {
	return "Bearer " + c.Token
}

// Expired reports whether the credential is known to be expired at now.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// Ref points at a single resource returned by an enumeration.
type Ref struct {
	ID         int        `json:"id"`
	Collection Collection `json:"collection"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Collection, r.ID)
}

// Endpoint describes where a collection is listed and where a single
// resource's detail is fetched.
type Endpoint struct {
	Collection Collection `yaml:"collection"`
	// ListPath is the listing (or advanced search) path, relative to the base URL.
	ListPath string `yaml:"list_path"`
	// ListKey is the key path to the array of listed elements.
	ListKey []string `yaml:"list_key"`
	// DetailPath contains an {id} placeholder.
	DetailPath string `yaml:"detail_path"`
}

// DetailURLPath returns the detail path for id.
func (e Endpoint) DetailURLPath(id int) string {
	return strings.ReplaceAll(e.DetailPath, "{id}", strconv.Itoa(id))
}

// Validate checks that the endpoint can be listed and fetched.
func (e Endpoint) Validate() error {
	if e.ListPath == "" {
		return fmt.Errorf("endpoint for %s has no list path", e.Collection)
	}
	if len(e.ListKey) == 0 {
		return fmt.Errorf("endpoint for %s has no list key", e.Collection)
	}
	if !strings.Contains(e.DetailPath, "{id}") {
		return fmt.Errorf("endpoint for %s: detail path %q has no {id} placeholder", e.Collection, e.DetailPath)
	}
	return nil
}

// Record is one output row: a flat projection or a rewritten detail.
type Record map[string]interface{}

// Site is the administrative scope embedded in profiles and policies.
type Site struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NoSite is the "no site / all sites" sentinel.
var NoSite = Site{ID: -1, Name: "None"}
