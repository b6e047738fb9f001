// Package jobs embeds the sample job definitions into the binary.
package jobs

import "embed"

// Embedded contains the sample job YAML files.
//
//go:embed *.yaml
var Embedded embed.FS
