// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Events cover the points where an operator may need to act: a
// workflow waiting for input, and a workflow reaching a terminal state.
//
// All workflow code depends only on the simple Service interface.
package notifications
