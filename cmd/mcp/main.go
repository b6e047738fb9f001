// MCP server standalone entrypoint.
// This is a convenience binary that only serves a saved export.
package main

import (
	"log/slog"
	"os"

	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/logging"
	"github.com/macadmin-tools/jamfkit/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
)

var version = "dev"

func main() {
	// stdout carries the protocol, so logs go to stderr.
	logger, err := logging.New(os.Stderr, os.Getenv("JAMFKIT_LOG_LEVEL"), logging.FormatText, false)
	if err != nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
		logger.Warn("Invalid JAMFKIT_LOG_LEVEL, using info", "error", err)
	}

	if len(os.Args) < 2 {
		logger.Error("Usage: jamfkit-mcp <export.json>")
		os.Exit(1)
	}

	e, err := export.Load(os.Args[1])
	if err != nil {
		logger.Error("Failed to load export", "error", err)
		os.Exit(1)
	}
	logger.Info("Loaded export",
		"job", e.Job,
		"instance", e.InstanceURL,
		"records", len(e.Records),
		"skipped", len(e.Summary.Skipped),
	)

	mcpSrv := mcpserver.NewMCPServer(e, version)

	logger.Info("Starting jamfkit MCP server on stdio")
	if err := server.ServeStdio(mcpSrv); err != nil {
		logger.Error("MCP server error", "error", err)
		os.Exit(1)
	}
}
