package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestKey identifies a cached entry by method and absolute URL.
type RequestKey struct {
	Method string
	URL    string
}

// NewRequestKey normalizes method and rawURL into a RequestKey.
// The URL must be absolute; its fragment is dropped and scheme/host lower-cased.
func NewRequestKey(method, rawURL string) (RequestKey, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RequestKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return KeyForURL(method, u)
}

// KeyForURL builds the RequestKey for an already parsed URL.
func KeyForURL(method string, u *url.URL) (RequestKey, error) {
	if u == nil || !u.IsAbs() || u.Host == "" {
		return RequestKey{}, fmt.Errorf("%w: url must be absolute", ErrInvalidKey)
	}
	if method == "" {
		method = http.MethodGet
	}

	norm := *u
	norm.Scheme = strings.ToLower(norm.Scheme)
	norm.Host = strings.ToLower(norm.Host)
	norm.Fragment = ""
	norm.RawFragment = ""
	if norm.Path == "" {
		norm.Path = "/"
	}

	return RequestKey{
		Method: strings.ToUpper(method),
		URL:    norm.String(),
	}, nil
}

// KeyForRequest builds the RequestKey for req.
func KeyForRequest(req *http.Request) (RequestKey, error) {
	if req == nil {
		return RequestKey{}, ErrInvalidKey
	}
	return KeyForURL(req.Method, req.URL)
}

// ParseRequestKey parses the String form of a key.
func ParseRequestKey(s string) (RequestKey, error) {
	method, rawURL, ok := strings.Cut(s, " ")
	if !ok {
		return RequestKey{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return NewRequestKey(method, rawURL)
}

// String renders the key as "METHOD URL".
func (k RequestKey) String() string {
	return k.Method + " " + k.URL
}
