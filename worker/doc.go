// Package worker assembles the offline layer and dispatches host events.
//
// A Worker owns one lifecycle state, cache store, interception engine,
// offline queue and messenger. Host events (start, sync, push, notification
// click, control message) each return a Task; the host must keep the
// worker alive until every Task it started has settled.
package worker
