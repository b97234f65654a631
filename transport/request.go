// Package transport issues authenticated HTTP calls to the upstream API
// with fixed-delay pacing and uniform error classification.
//
// The dispatcher performs no retries: callers receive a classified
// *core.APIError and decide on retry policy themselves.
package transport

import (
	"io"
	"net/url"
	"time"
)

// FilePart is one file attachment in a multipart request.
type FilePart struct {
	// Field is the multipart form field name (e.g. "input_reference").
	Field string

	// Filename is sent in the part's Content-Disposition header.
	Filename string

	// ContentType is the part's media type, detected before upload.
	ContentType string

	// Reader supplies the file content. The dispatcher consumes it fully
	// during encoding; it is not rewound or closed.
	Reader io.Reader
}

// Request describes one upstream call. It is created per call by the
// client facade and owned by the dispatcher for the duration of that call.
type Request struct {
	// Method is the HTTP method.
	Method string

	// Path is the endpoint path, optionally containing an "{id}"
	// placeholder (e.g. "/v1/videos/{id}/remix").
	Path string

	// ID replaces the "{id}" placeholder, path-escaped. Required when the
	// path contains the placeholder.
	ID string

	// Query holds URL query parameters (pagination, content variants).
	Query url.Values

	// JSONBody, when non-nil, is JSON-encoded as the request body.
	JSONBody interface{}

	// Fields and Files switch the body to multipart encoding. JSONBody
	// must be nil when either is set.
	Fields map[string]string
	Files  []FilePart

	// Accept overrides the Accept header; defaults to application/json.
	Accept string

	// Timeout bounds this single request. Zero means the dispatcher's
	// default request timeout applies.
	Timeout time.Duration
}

// isMultipart reports whether the request body uses multipart encoding.
func (r *Request) isMultipart() bool {
	return len(r.Fields) > 0 || len(r.Files) > 0
}
