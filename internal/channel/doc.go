// Package channel implements the exclusive single-client byte channel.
//
// Ownership boundary:
// - session gate: non-blocking single-holder admission and release
// - message slot: one bounded message, overwritten on write, drained on read
// - seal: shutdown path that evicts a stuck holder
//
// The gate is the sole serialization point. Write, Read, and Close
// require the session token returned by Open; a stale or foreign token
// is rejected with ErrNotHolder rather than corrupting slot state.
package channel
