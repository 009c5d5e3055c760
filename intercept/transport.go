package intercept

import (
	"net/http"

	"github.com/jonwraymond/offlinekit/observe"
)

// RoundTrip lets the engine serve as an http.Client transport.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := e.Handle(req.Context(), req)
	if err != nil {
		return nil, err
	}
	return resp.HTTPResponse(req), nil
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ServeHTTP proxies r to the origin through the engine. A failed pass-through
// request is answered with 502.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := *e.origin
	target.Path = r.URL.Path
	target.RawPath = r.URL.RawPath
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	out.ContentLength = r.ContentLength
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	resp, err := e.Handle(r.Context(), out)
	if err != nil {
		e.logger.Warn(r.Context(), "upstream request failed", observe.F("method", r.Method), observe.F("path", r.URL.Path), observe.Err(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	header := w.Header()
	for k, v := range resp.Header {
		header[k] = append([]string(nil), v...)
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

var (
	_ http.RoundTripper = (*Engine)(nil)
	_ http.Handler      = (*Engine)(nil)
)
