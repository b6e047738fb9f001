// Package config loads the Jamf connection settings and job parameters.
//
// Values are layered: the YAML config file first, then JAMF_* environment
// variables, then command-line flags (applied by the CLI).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config flag is given and the file exists.
const DefaultFile = "jamfkit.yaml"

// EnvHelp describes the environment variables read by ApplyEnv.
const EnvHelp = `Jamf credentials (environment variables):
  JAMF_URL           - Jamf Pro URL (e.g. https://example.jamfcloud.com)
  JAMF_USERNAME      - API user for the password grant
  JAMF_PASSWORD      - API user password
  JAMF_CLIENT_ID     - API client ID (alternative to username/password)
  JAMF_CLIENT_SECRET - API client secret
  JAMF_SOURCE_SITE   - Site ID whose resources are migrated to "None"`

// Auth methods.
const (
	AuthBasic = "basic"
	AuthOAuth = "oauth"
)

// UpdatePlan holds the managed software update plan settings.
type UpdatePlan struct {
	// GroupID is the smart group the plan targets.
	GroupID int `yaml:"group_id"`
	// ObjectType is COMPUTER_GROUP or MOBILE_DEVICE_GROUP.
	ObjectType string `yaml:"object_type"`
	// UTCOffset is the fixed offset the deadline is expressed in, e.g. "-05:00".
	UTCOffset string `yaml:"utc_offset"`
}

// Config holds everything needed to talk to one Jamf Pro instance.
type Config struct {
	// URL is the base URL of the Jamf Pro server.
	URL string `yaml:"url"`
	// AuthMethod is "basic" (password grant) or "oauth" (client credentials).
	AuthMethod string `yaml:"auth_method"`
	// Username for the password grant.
	Username string `yaml:"username"`
	// Password for the password grant.
	Password string `yaml:"password"`
	// ClientID for the client credentials grant.
	ClientID string `yaml:"client_id"`
	// ClientSecret for the client credentials grant.
	ClientSecret string `yaml:"client_secret"`
	// SourceSite is the site whose resources are rewritten to the "None" site.
	SourceSite int `yaml:"source_site"`
	// SearchID is the advanced search used to enumerate computers or mobile
	// devices. Zero lists the whole collection.
	SearchID int `yaml:"search_id"`
	// UpdatePlan configures the plan command.
	UpdatePlan UpdatePlan `yaml:"update_plan"`
}

// Load reads a YAML config file. A missing DefaultFile is not an error.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		path = DefaultFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overlays non-empty JAMF_* environment variables.
func (c *Config) ApplyEnv() error {
	setString(&c.URL, "JAMF_URL")
	setString(&c.Username, "JAMF_USERNAME")
	setString(&c.Password, "JAMF_PASSWORD")
	setString(&c.ClientID, "JAMF_CLIENT_ID")
	setString(&c.ClientSecret, "JAMF_CLIENT_SECRET")

	if v := os.Getenv("JAMF_SOURCE_SITE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JAMF_SOURCE_SITE: %w", err)
		}
		c.SourceSite = n
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ResolveAuthMethod infers the auth method when none is configured: client
// credentials win when both client ID and secret are set.
func (c *Config) ResolveAuthMethod() {
	if c.AuthMethod != "" {
		return
	}
	c.AuthMethod = AuthBasic
	if c.ClientID != "" && c.ClientSecret != "" {
		c.AuthMethod = AuthOAuth
	}
}

// Validate checks the connection settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("jamf URL is required (--url, JAMF_URL or url in the config file)")
	}
	switch c.AuthMethod {
	case AuthBasic:
		if c.Username == "" || c.Password == "" {
			return errors.New("username and password are required for basic auth")
		}
	case AuthOAuth:
		if c.ClientID == "" || c.ClientSecret == "" {
			return errors.New("client_id and client_secret are required for OAuth")
		}
	default:
		return fmt.Errorf("unsupported auth method: %s", c.AuthMethod)
	}
	return nil
}
