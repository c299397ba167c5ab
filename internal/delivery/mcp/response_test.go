package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
)

func TestNewResponse(t *testing.T) {
	resp := NewResponse()
	if resp == nil {
		t.Fatal("NewResponse returned nil")
	}
	if len(resp.Content) != 0 {
		t.Errorf("Expected empty content, got %v", resp.Content)
	}
	if resp.Metadata != nil {
		t.Errorf("Expected nil metadata, got %v", resp.Metadata)
	}
}

func TestWithTextAndMetadata(t *testing.T) {
	resp := NewResponse().WithText("SELECT 1").WithText("second").WithMetadata("row_count", 2)
	if len(resp.Content) != 2 {
		t.Fatalf("Expected 2 content items, got %d", len(resp.Content))
	}
	if resp.Content[0].Type != "text" || resp.Content[0].Text != "SELECT 1" {
		t.Errorf("Unexpected first content item %+v", resp.Content[0])
	}
	if val, ok := resp.Metadata["row_count"]; !ok || val != 2 {
		t.Errorf("Expected metadata['row_count'] = 2, got %v", val)
	}
}

func TestFromErrorRiskRejected(t *testing.T) {
	err := fmt.Errorf("execute: %w", &dberr.RiskRejectedError{Dialect: "mysql", Pattern: "DROP"})
	out, outErr := FromError(err)
	if outErr != nil {
		t.Fatalf("Expected structured response, got error %v", outErr)
	}

	resp, ok := out.(*Response)
	if !ok {
		t.Fatalf("Expected *Response, got %T", out)
	}
	if !resp.IsError {
		t.Error("Expected IsError to be set")
	}
	detail, ok := resp.Metadata["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected error metadata, got %v", resp.Metadata)
	}
	if detail["type"] != dberr.KindRiskRejected || detail["pattern"] != "DROP" {
		t.Errorf("Unexpected error detail %v", detail)
	}

	b, jsonErr := json.Marshal(resp)
	if jsonErr != nil {
		t.Fatalf("Failed to marshal response: %v", jsonErr)
	}
	var decoded map[string]interface{}
	if jsonErr := json.Unmarshal(b, &decoded); jsonErr != nil {
		t.Fatalf("Failed to unmarshal response: %v", jsonErr)
	}
	if decoded["isError"] != true {
		t.Errorf("Expected isError in JSON, got %s", string(b))
	}
}

func TestFromErrorInvalidRequest(t *testing.T) {
	out, err := FromError(fmt.Errorf("%w: sql is required", dbtools.ErrInvalidRequest))
	if err != nil {
		t.Fatalf("Expected structured response, got %v", err)
	}
	detail := out.(*Response).Metadata["error"].(map[string]interface{})
	if detail["type"] != "invalid_request" {
		t.Errorf("Expected invalid_request, got %v", detail["type"])
	}
}

func TestFromErrorUnknown(t *testing.T) {
	testErr := errors.New("test error")
	resp, err := FromError(testErr)
	if resp != nil {
		t.Errorf("Expected nil response, got %v", resp)
	}
	if err != testErr {
		t.Errorf("Expected error to be passed through, got %v", err)
	}
}

func TestEnsureValidResponse(t *testing.T) {
	if resp, err := EnsureValidResponse(nil, nil); err != nil || len(resp.(*Response).Content) != 0 {
		t.Errorf("Expected empty response for nil, got %v, %v", resp, err)
	}

	resp, err := EnsureValidResponse("plain", nil)
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if r := resp.(*Response); len(r.Content) != 1 || r.Content[0].Text != "plain" {
		t.Errorf("Expected string to be wrapped, got %+v", r)
	}

	original := FromString("x")
	if resp, _ := EnsureValidResponse(original, nil); resp != original {
		t.Errorf("Expected *Response to be returned unchanged")
	}
}
