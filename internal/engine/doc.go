// Package engine drives workflow instances through their operations.
//
// The engine owns no instances. Callers hand it one instance at a time and
// guarantee nobody else mutates that instance while a call is in progress;
// the store's claim protocol provides that in the daemon. Each call runs the
// instance forward until it pauses, reaches a terminal state, or the context
// is cancelled, persisting through the configured Saver after every
// transition so a crash can be recovered at the stored position.
package engine
