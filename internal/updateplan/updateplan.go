// Package updateplan builds and issues managed software update plans that
// force-install the latest OS update on a group by a weekly deadline.
package updateplan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Path is the endpoint plans for a group are posted to.
const Path = "/api/v1/managed-software-updates/plans/group"

// Group object types.
const (
	ComputerGroup     = "COMPUTER_GROUP"
	MobileDeviceGroup = "MOBILE_DEVICE_GROUP"
)

const (
	// DeadlineHour is the local hour of the forced install.
	DeadlineHour = 22
	// DeadlineLayout is the local date-time format Jamf expects, without zone.
	DeadlineLayout = "2006-01-02T15:04:05"
	// DefaultUTCOffset is used when no offset is configured.
	DefaultUTCOffset = "-05:00"
)

// NextDeadline returns 22:00:00 on the upcoming Saturday in loc. A reference
// that falls on a Saturday yields that same Saturday, even after 22:00.
func NextDeadline(ref time.Time, loc *time.Location) time.Time {
	t := ref.In(loc)
	days := (int(time.Saturday) - int(t.Weekday()) + 7) % 7
	return time.Date(t.Year(), t.Month(), t.Day()+days, DeadlineHour, 0, 0, 0, loc)
}

// Zone parses a "-05:00" style offset into a fixed zone. "Z" and "UTC" are
// accepted for UTC.
func Zone(offset string) (*time.Location, error) {
	switch offset {
	case "Z", "UTC":
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("invalid UTC offset %q (want e.g. -05:00)", offset)
	}
	_, secs := t.Zone()
	return time.FixedZone("UTC"+offset, secs), nil
}

// Group identifies the plan's target. GroupID is sent as a string.
type Group struct {
	ObjectType string `json:"objectType"`
	GroupID    string `json:"groupId"`
}

// Config holds the update settings of a plan.
type Config struct {
	UpdateAction              string `json:"updateAction"`
	VersionType               string `json:"versionType"`
	SpecificVersion           string `json:"specificVersion"`
	ForceInstallLocalDateTime string `json:"forceInstallLocalDateTime"`
}

// Plan is the request body of a group plan.
type Plan struct {
	Group  Group  `json:"group"`
	Config Config `json:"config"`
}

// NewPlan builds a plan that downloads and installs the latest available
// update on the group, forced at deadline.
func NewPlan(groupID int, objectType string, deadline time.Time) (Plan, error) {
	if groupID <= 0 {
		return Plan{}, fmt.Errorf("group id must be positive, got %d", groupID)
	}
	switch objectType {
	case ComputerGroup, MobileDeviceGroup:
	default:
		return Plan{}, fmt.Errorf("unsupported object type %q", objectType)
	}

	return Plan{
		Group: Group{
			ObjectType: objectType,
			GroupID:    fmt.Sprintf("%d", groupID),
		},
		Config: Config{
			UpdateAction:              "DOWNLOAD_INSTALL_SCHEDULE",
			VersionType:               "LATEST_ANY",
			SpecificVersion:           "NO_SPECIFIC_VERSION",
			ForceInstallLocalDateTime: deadline.Format(DeadlineLayout),
		},
	}, nil
}

// Poster sends an authenticated JSON POST. *jamf.Client implements it.
type Poster interface {
	PostJSON(ctx context.Context, path string, cred resource.Credential, payload interface{}) (int, error)
}

// Issue posts plan once and returns the response status.
func Issue(ctx context.Context, poster Poster, cred resource.Credential, plan Plan, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	status, err := poster.PostJSON(ctx, Path, cred, plan)
	if err != nil {
		return status, fmt.Errorf("issuing update plan for group %s: %w", plan.Group.GroupID, err)
	}
	logger.Info("Update plan issued",
		"group_id", plan.Group.GroupID,
		"object_type", plan.Group.ObjectType,
		"deadline", plan.Config.ForceInstallLocalDateTime,
		"status", status,
	)
	return status, nil
}
