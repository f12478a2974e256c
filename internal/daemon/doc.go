// Package daemon coordinates the long-running mediaflow process.
//
// It wires configuration, workflow storage, the local job cluster and the
// workflow manager into a single lifecycle with flock-based locking to
// prevent multiple instances on the same data directory. Preflight checks run
// before any claim is taken, and claims left behind by a previous process are
// released at startup.
//
// Keep orchestration logic here: operation handlers live in their own
// packages while the daemon focuses on startup, shutdown, and status.
package daemon
