// Package mcpserver serves a saved job export over the Model Context Protocol
// so an assistant can query the records and the skipped resources.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// maxQueryLimit caps the number of records returned per query to prevent
	// excessive memory use / output size from MCP tool calls.
	maxQueryLimit = 500

	// defaultQueryLimit is the default number of records returned.
	defaultQueryLimit = 50

	// maxInputLength caps generic string input length for MCP parameters.
	maxInputLength = 256

	metaURI = "jamfkit://export/meta"
)

// validIdentifier matches record field names (alphanumeric + underscores).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,80}$`)

// NewMCPServer creates a new MCP server with the export tools registered.
func NewMCPServer(e *export.Export, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"jamfkit",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	registerTools(s, e)
	registerResources(s, e)

	return s
}

func registerTools(s *server.MCPServer, e *export.Export) {
	// get_summary: counts per outcome.
	s.AddTool(
		mcp.NewTool("get_summary",
			mcp.WithDescription("Get the run summary: resources listed, records emitted and counts per outcome (accepted, declined, missing_field, fetch_failed, ...)."),
		),
		getSummaryHandler(e),
	)

	// list_records: filtered view of the records.
	s.AddTool(
		mcp.NewTool("list_records",
			mcp.WithDescription("List exported records. Optionally keep only records whose field contains the given value (case-insensitive)."),
			mcp.WithString("field",
				mcp.Description("Filter records where this field matches the given value (e.g. serial_number, category)"),
			),
			mcp.WithString("value",
				mcp.Description("Value to match against the field"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Max number of records to return (default 50, max 500)"),
			),
		),
		listRecordsHandler(e),
	)

	// get_record: single record by key.
	s.AddTool(
		mcp.NewTool("get_record",
			mcp.WithDescription("Get one record by the value of its key field (e.g. a serial number or policy name)."),
			mcp.WithString("value",
				mcp.Required(),
				mcp.Description("The exact value to look up"),
			),
			mcp.WithString("field",
				mcp.Description("Field to match instead of the export's key field"),
			),
		),
		getRecordHandler(e),
	)

	// list_skipped: resources that produced no record.
	s.AddTool(
		mcp.NewTool("list_skipped",
			mcp.WithDescription("List resources that produced no record, with the reason. Optionally filter by reason."),
			mcp.WithString("reason",
				mcp.Description("Filter by reason: "+reasonList()),
			),
			mcp.WithNumber("limit",
				mcp.Description("Max number of entries to return (default 50, max 500)"),
			),
		),
		listSkippedHandler(e),
	)
}

func registerResources(s *server.MCPServer, e *export.Export) {
	s.AddResource(
		mcp.NewResource(
			metaURI,
			"Export Metadata",
			mcp.WithResourceDescription("Job, instance and run information of the loaded export"),
			mcp.WithMIMEType("application/json"),
		),
		func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			metaJSON, _ := json.MarshalIndent(meta(e), "", "  ")
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      metaURI,
					MIMEType: "application/json",
					Text:     string(metaJSON),
				},
			}, nil
		},
	)
}

func meta(e *export.Export) map[string]interface{} {
	return map[string]interface{}{
		"job":          e.Job,
		"collection":   e.Collection,
		"instance_url": e.InstanceURL,
		"run_id":       e.RunID,
		"generated_at": e.GeneratedAt,
		"columns":      e.Columns,
		"key_field":    e.KeyField,
		"records":      len(e.Records),
	}
}

// --- Tool Handlers ---

func getSummaryHandler(e *export.Export) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s := e.Summary
		result, _ := json.MarshalIndent(map[string]interface{}{
			"job":          e.Job,
			"listed":       s.Listed,
			"emitted":      s.Emitted,
			"replaced":     s.Replaced,
			"failed":       s.Failed(),
			"by_reason":    s.ByReason,
			"started_at":   s.StartedAt,
			"completed_at": s.CompletedAt,
		}, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}
}

func listRecordsHandler(e *export.Export) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		field := strings.TrimSpace(req.GetString("field", ""))
		value := req.GetString("value", "")

		// Validate field name format if provided.
		if field != "" && !validIdentifier.MatchString(field) {
			return mcp.NewToolResultError(
				fmt.Sprintf("invalid field name %q; must be alphanumeric with underscores", field),
			), nil
		}
		if len(value) > maxInputLength {
			return mcp.NewToolResultError("value exceeds maximum length"), nil
		}

		limit := queryLimit(req)

		filtered := []resource.Record{}
		for _, r := range e.Records {
			if field != "" {
				fieldVal := fmt.Sprintf("%v", r[field])
				if !strings.Contains(strings.ToLower(fieldVal), strings.ToLower(value)) {
					continue
				}
			}
			filtered = append(filtered, r)
			if len(filtered) >= limit {
				break
			}
		}

		result, _ := json.MarshalIndent(map[string]interface{}{
			"count":   len(filtered),
			"total":   len(e.Records),
			"records": filtered,
		}, "", "  ")

		return mcp.NewToolResultText(string(result)), nil
	}
}

func getRecordHandler(e *export.Export) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(value) > maxInputLength {
			return mcp.NewToolResultError("value exceeds maximum length"), nil
		}

		field := strings.TrimSpace(req.GetString("field", e.KeyField))
		if field == "" {
			return mcp.NewToolResultError("this export has no key field; pass field explicitly"), nil
		}
		if !validIdentifier.MatchString(field) {
			return mcp.NewToolResultError(
				fmt.Sprintf("invalid field name %q; must be alphanumeric with underscores", field),
			), nil
		}

		rec, ok := e.Find(field, value)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no record with %s %q", field, value)), nil
		}
		result, _ := json.MarshalIndent(rec, "", "  ")
		return mcp.NewToolResultText(string(result)), nil
	}
}

func listSkippedHandler(e *export.Export) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reason := strings.ToLower(strings.TrimSpace(req.GetString("reason", "")))
		if reason != "" && !validReason(reason) {
			return mcp.NewToolResultError(
				fmt.Sprintf("invalid reason %q; allowed values: %s", reason, reasonList()),
			), nil
		}

		limit := queryLimit(req)

		filtered := []outcome.Skipped{}
		for _, s := range e.Summary.Skipped {
			if reason != "" && string(s.Reason) != reason {
				continue
			}
			filtered = append(filtered, s)
			if len(filtered) >= limit {
				break
			}
		}

		result, _ := json.MarshalIndent(map[string]interface{}{
			"count":   len(filtered),
			"total":   len(e.Summary.Skipped),
			"skipped": filtered,
		}, "", "  ")

		return mcp.NewToolResultText(string(result)), nil
	}
}

func queryLimit(req mcp.CallToolRequest) int {
	limit := int(req.GetFloat("limit", float64(defaultQueryLimit)))
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	return limit
}

func validReason(r string) bool {
	for _, reason := range outcome.Reasons {
		if reason != outcome.Accepted && string(reason) == r {
			return true
		}
	}
	return false
}

func reasonList() string {
	var names []string
	for _, reason := range outcome.Reasons {
		if reason != outcome.Accepted {
			names = append(names, string(reason))
		}
	}
	return strings.Join(names, ", ")
}
