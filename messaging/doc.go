// Package messaging is the narrow channel between the worker and its host.
//
// Push turns an incoming push payload into a displayed notification,
// Interact resolves a click on that notification, and HandleControl answers
// the two control messages a host may send: SKIP_WAITING and GET_VERSION.
// ControlHandler exposes HandleControl over HTTP.
package messaging
