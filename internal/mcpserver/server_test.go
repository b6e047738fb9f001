package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/macadmin-tools/jamfkit/internal/export"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestExport() *export.Export {
	e := export.New("computer-wifi-macs", resource.Computer, "https://test.jamfcloud.com", "run-1")
	e.Columns = []string{"serial_number", "mac_address"}
	e.KeyField = "serial_number"
	e.Records = []resource.Record{
		{"serial_number": "C02AAA", "mac_address": "aa:aa:aa:aa:aa:01"},
		{"serial_number": "C02BBB", "mac_address": "bb:bb:bb:bb:bb:02"},
		{"serial_number": "FVFCCC", "mac_address": "cc:cc:cc:cc:cc:03"},
	}

	e.Summary.Listed = 5
	e.Summary.Emitted = 3
	for range e.Records {
		e.Summary.Accept()
	}
	e.Summary.Skip(&outcome.Skip{
		Ref:    resource.Ref{ID: 4, Collection: resource.Computer},
		Reason: outcome.Declined,
		Err:    errors.New("no wireless adapter found on C02DDD"),
	})
	e.Summary.Skip(&outcome.Skip{
		Ref:    resource.Ref{ID: 5, Collection: resource.Computer},
		Reason: outcome.DecodeFailed,
		Err:    errors.New("invalid character '<'"),
	})
	return e
}

func parseResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	text := result.Content[0].(mcp.TextContent).Text
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		t.Fatalf("Failed to parse result JSON: %v", err)
	}
	return parsed
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(newTestExport(), "test")
	if s == nil {
		t.Fatal("NewMCPServer() returned nil")
	}
}

func TestGetSummaryHandler(t *testing.T) {
	handler := getSummaryHandler(newTestExport())

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	parsed := parseResult(t, result)
	if int(parsed["listed"].(float64)) != 5 {
		t.Errorf("listed = %v, want 5", parsed["listed"])
	}
	if int(parsed["failed"].(float64)) != 1 {
		t.Errorf("failed = %v, want 1", parsed["failed"])
	}
	byReason := parsed["by_reason"].(map[string]interface{})
	if int(byReason["declined"].(float64)) != 1 {
		t.Errorf("by_reason.declined = %v, want 1", byReason["declined"])
	}
}

func TestListRecordsHandler_All(t *testing.T) {
	handler := listRecordsHandler(newTestExport())

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	parsed := parseResult(t, result)
	if count := int(parsed["count"].(float64)); count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestListRecordsHandler_FilterByField(t *testing.T) {
	handler := listRecordsHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"field": "serial_number",
		"value": "c02",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}

	parsed := parseResult(t, result)
	if count := int(parsed["count"].(float64)); count != 2 {
		t.Errorf("count = %d, want 2 (case-insensitive match on C02)", count)
	}
	if total := int(parsed["total"].(float64)); total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestListRecordsHandler_InvalidFieldName(t *testing.T) {
	handler := listRecordsHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"field": "serial; DROP",
		"value": "x",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("Should return error for invalid field name")
	}
}

func TestListRecordsHandler_LimitBounds(t *testing.T) {
	handler := listRecordsHandler(newTestExport())

	tests := []struct {
		name  string
		limit float64
		want  int
	}{
		{"negative limit uses default", -1, 3},
		{"zero limit uses default", 0, 3},
		{"excessive limit is capped", 999999, 3},
		{"small limit", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Arguments = map[string]interface{}{
				"limit": tt.limit,
			}

			result, err := handler(context.Background(), req)
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if result.IsError {
				t.Fatalf("unexpected error for limit %v", tt.limit)
			}
			if count := int(parseResult(t, result)["count"].(float64)); count != tt.want {
				t.Errorf("count = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestGetRecordHandler_ByKey(t *testing.T) {
	handler := getRecordHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"value": "C02BBB",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatal("unexpected error result")
	}

	parsed := parseResult(t, result)
	if parsed["mac_address"] != "bb:bb:bb:bb:bb:02" {
		t.Errorf("mac_address = %v", parsed["mac_address"])
	}
}

func TestGetRecordHandler_ByField(t *testing.T) {
	handler := getRecordHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"field": "mac_address",
		"value": "cc:cc:cc:cc:cc:03",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if parseResult(t, result)["serial_number"] != "FVFCCC" {
		t.Error("lookup by explicit field returned the wrong record")
	}
}

func TestGetRecordHandler_NotFound(t *testing.T) {
	handler := getRecordHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"value": "NOPE",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("Should return error for unknown key")
	}
}

func TestGetRecordHandler_NoKeyField(t *testing.T) {
	e := newTestExport()
	e.KeyField = ""
	handler := getRecordHandler(e)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"value": "C02AAA",
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("Should return error when the export has no key field")
	}
}

func TestGetRecordHandler_ExcessiveLength(t *testing.T) {
	handler := getRecordHandler(newTestExport())

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"value": strings.Repeat("a", 300),
	}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("Should return error for excessive input length")
	}
}

func TestListSkippedHandler(t *testing.T) {
	handler := listSkippedHandler(newTestExport())

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if count := int(parseResult(t, result)["count"].(float64)); count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"reason": "decode_failed",
	}
	result, err = handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	parsed := parseResult(t, result)
	if count := int(parsed["count"].(float64)); count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	entry := parsed["skipped"].([]interface{})[0].(map[string]interface{})
	if int(entry["id"].(float64)) != 5 {
		t.Errorf("skipped id = %v, want 5", entry["id"])
	}
}

func TestListSkippedHandler_InvalidReason(t *testing.T) {
	handler := listSkippedHandler(newTestExport())

	for _, reason := range []string{"accepted", "timeout"} {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]interface{}{
			"reason": reason,
		}

		result, err := handler(context.Background(), req)
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !result.IsError {
			t.Errorf("Should return error for reason %q", reason)
		}
	}
}

func TestMeta(t *testing.T) {
	m := meta(newTestExport())
	if m["job"] != "computer-wifi-macs" {
		t.Errorf("job = %v", m["job"])
	}
	if m["records"] != 3 {
		t.Errorf("records = %v, want 3", m["records"])
	}
	if m["key_field"] != "serial_number" {
		t.Errorf("key_field = %v", m["key_field"])
	}
}
