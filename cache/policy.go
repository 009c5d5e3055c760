package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// The cache policy is fixed cache-first: only same-origin GET requests are
// looked up or stored, and only successful basic responses are written back.

// SameOrigin reports whether u shares scheme, host and port with origin.
func SameOrigin(u, origin *url.URL) bool {
	if u == nil || origin == nil {
		return false
	}
	return strings.EqualFold(u.Scheme, origin.Scheme) &&
		strings.EqualFold(hostPort(u), hostPort(origin))
}

func hostPort(u *url.URL) string {
	host, port := u.Hostname(), u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return host + ":" + port
}

// Eligible reports whether req may touch the cache at all.
// Non-GET methods and cross-origin targets never read from or write to it.
func Eligible(req *http.Request, origin *url.URL) bool {
	if req == nil || req.URL == nil {
		return false
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet {
		return false
	}
	return SameOrigin(req.URL, origin)
}

// Cacheable reports whether a network response may be written back.
func Cacheable(resp Response) bool {
	return resp.Status == http.StatusOK && resp.Type == TypeBasic
}

// IsNavigation reports whether req loads a full document.
// Browsers mark these with Sec-Fetch-Dest: document or Sec-Fetch-Mode: navigate.
func IsNavigation(req *http.Request) bool {
	if req == nil {
		return false
	}
	return strings.EqualFold(req.Header.Get("Sec-Fetch-Dest"), "document") ||
		strings.EqualFold(req.Header.Get("Sec-Fetch-Mode"), "navigate")
}
