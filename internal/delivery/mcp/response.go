package mcp

import (
	"errors"

	"github.com/FreePeak/nl2sql-mcp-server/pkg/dberr"
	"github.com/FreePeak/nl2sql-mcp-server/pkg/dbtools"
)

// TextContent represents a text content item in a response
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the result of a tool call. IsError marks a failure the caller
// should read, such as rejected SQL, rather than a protocol error.
type Response struct {
	Content  []TextContent          `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	IsError  bool                   `json:"isError,omitempty"`
}

// NewResponse creates a new empty Response
func NewResponse() *Response {
	return &Response{
		Content: make([]TextContent, 0),
	}
}

// WithText adds a text content item to the response
func (r *Response) WithText(text string) *Response {
	r.Content = append(r.Content, TextContent{
		Type: "text",
		Text: text,
	})
	return r
}

// WithMetadata adds metadata to the response
func (r *Response) WithMetadata(key string, value interface{}) *Response {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
	return r
}

// FromString creates a response from a string
func FromString(text string) *Response {
	return NewResponse().WithText(text)
}

// FromError turns a known failure into an error response. Errors outside the
// taxonomy are returned as is and end up as protocol errors.
func FromError(err error) (interface{}, error) {
	kind := dberr.Kind(err)
	if kind == "" && errors.Is(err, dbtools.ErrInvalidRequest) {
		kind = "invalid_request"
	}
	if kind == "" {
		return nil, err
	}

	detail := map[string]interface{}{"type": kind}
	var rejected *dberr.RiskRejectedError
	if errors.As(err, &rejected) {
		detail["pattern"] = rejected.Pattern
	}

	resp := FromString(err.Error()).WithMetadata("error", detail)
	resp.IsError = true
	return resp, nil
}

// EnsureValidResponse gives every tool result the content-array shape.
func EnsureValidResponse(response interface{}, err error) (interface{}, error) {
	if err != nil {
		return FromError(err)
	}
	switch r := response.(type) {
	case nil:
		return NewResponse(), nil
	case *Response:
		return r, nil
	case string:
		return FromString(r), nil
	default:
		return response, nil
	}
}
