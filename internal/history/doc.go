// Package history records committed knob mutations.
//
// Every mutation the protocol engine commits (set, increment, decrement,
// bulk apply) is appended to a SQLite-backed log with its old and new
// value, the directive that caused it, and the transport it arrived on.
// The log is host-side observability: the protocol engine itself never
// persists knob state across power cycles.
//
// Entries are pruned on a retention schedule so the database stays bounded
// on long-lived devices.
package history
