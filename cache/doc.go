// Package cache provides the versioned response store behind the interception
// engine.
//
// A Store holds named generations; each Generation maps a RequestKey (method and
// absolute URL) to a snapshotted Response. Responses are plain values, so a
// cached entry can be handed to any number of callers without a clone-before-read
// step. MemoryStore keeps generations in process; the diskstore subpackage
// persists them in LevelDB.
package cache
