// Package main - job registrations.
//
// Blank-import each built-in job package to trigger its init() function,
// which registers the job with the job registry. Jobs declared in YAML under
// jobs/ are registered from the embedded filesystem.
//
// To add a new built-in job, add a blank import here:
//
//	_ "github.com/macadmin-tools/jamfkit/internal/job/scripts"
package main

import (
	"fmt"

	"github.com/macadmin-tools/jamfkit/internal/job/custom"
	"github.com/macadmin-tools/jamfkit/jobs"

	// Register all built-in jobs.
	_ "github.com/macadmin-tools/jamfkit/internal/job/profiles"
	_ "github.com/macadmin-tools/jamfkit/internal/job/selfservice"
	_ "github.com/macadmin-tools/jamfkit/internal/job/wifimac"
)

func init() {
	if err := custom.RegisterFS(jobs.Embedded); err != nil {
		panic(fmt.Sprintf("registering embedded jobs: %v", err))
	}
}
