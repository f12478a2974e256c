// Package store persists workflow instances in SQLite.
//
// Each instance is stored as its JSON document plus the columns needed to
// find work without decoding it: state, position, the current operation, and
// the request flags set by the CLI (resume, stop). Workers take exclusive
// ownership of an instance through Claim and keep it alive with Heartbeat;
// ReclaimStale frees instances whose owner stopped heartbeating so another
// worker can recover them.
package store
