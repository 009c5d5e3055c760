// Package queue holds write operations attempted while offline and replays
// them once connectivity returns.
//
// Items are stored durably in FIFO order. Sync replays every queued item
// sequentially against a Replayer: a success records a ResponseRecord and
// removes the item, a failure is logged and the item stays queued for the
// next Sync. Delivery is at-least-once; AskClient sends the item ID as an
// Idempotency-Key header so the remote can de-duplicate.
package queue
