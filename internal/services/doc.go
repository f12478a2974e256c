// Package services defines shared utilities consumed by the engine, the
// operation handlers and the job cluster.
//
// Key responsibilities:
//   - Context helpers that stamp workflow ids, definition ids, operations and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so configuration,
//     invalid-state and collaborator failures stay distinguishable all the way
//     up to the CLI.
package services
