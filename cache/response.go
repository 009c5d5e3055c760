package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ResponseType classifies how readable a response is to the application.
type ResponseType string

const (
	// TypeBasic is a same-origin response whose body and headers are readable.
	TypeBasic ResponseType = "basic"
	// TypeCORS is a cross-origin response exposed through CORS.
	TypeCORS ResponseType = "cors"
	// TypeOpaque is a cross-origin response whose content is unreadable.
	TypeOpaque ResponseType = "opaque"
	// TypeError is a synthetic response produced without a server.
	TypeError ResponseType = "error"
)

// Response is a snapshot of an HTTP response: status, headers and the complete
// body, taken when the response was read.
type Response struct {
	URL        string       `json:"url"`
	Status     int          `json:"status"`
	StatusText string       `json:"status_text,omitempty"`
	Header     http.Header  `json:"header,omitempty"`
	Body       []byte       `json:"body,omitempty"`
	Type       ResponseType `json:"type"`
}

// OK reports whether the status is in the 2xx range.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy so callers may mutate headers or body freely.
func (r Response) Clone() Response {
	out := r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = bytes.Clone(r.Body)
	}
	return out
}

// HTTPResponse builds a fresh *http.Response for req from the snapshot.
// Each call yields an independent, readable body.
func (r Response) HTTPResponse(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	text := r.StatusText
	if text == "" {
		text = http.StatusText(r.Status)
	}
	return &http.Response{
		Status:        strconv.Itoa(r.Status) + " " + text,
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// Snapshot reads resp fully and closes its body. The returned Response is
// independent of resp and classified as typ.
func Snapshot(resp *http.Response, typ ResponseType) (Response, error) {
	if resp == nil {
		return Response{}, fmt.Errorf("cache: nil response")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("cache: read response body: %w", err)
	}

	var url string
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}

	return Response{
		URL:        url,
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
		Header:     resp.Header.Clone(),
		Body:       body,
		Type:       typ,
	}, nil
}

// statusText strips the numeric code from resp.Status ("200 OK" -> "OK").
func statusText(resp *http.Response) string {
	_, text, found := strings.Cut(resp.Status, " ")
	if !found {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// Unavailable is the synthetic answer for a failed non-navigation request.
func Unavailable() Response {
	return Response{
		Status:     http.StatusServiceUnavailable,
		StatusText: "Service Unavailable",
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte("Offline content not available"),
		Type:       TypeError,
	}
}
