// Package intercept is the cache-first request interception engine.
//
// Every outgoing request passes through Engine.Handle. Requests that are not
// same-origin GETs go straight to the network and never touch the cache, as
// does everything while Config.Control reports the worker is not yet
// controlling. Lookups never create a generation; only install does.
// Eligible requests are answered from the current cache generation when
// possible; on a miss the network is consulted, successful basic responses
// are written back in the background, and network failures are turned into
// the offline document (navigations) or a synthetic 503 (everything else).
//
// The engine can be installed as an http.RoundTripper for an in-process
// client, or served as an http.Handler in front of the origin.
package intercept
