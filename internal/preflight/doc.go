// Package preflight provides readiness checks for the filesystem paths and
// services mediaflow depends on.
//
// The daemon runs RunAll before it starts claiming workflows and refuses to
// start when a required check fails. The CLI "mediaflow config validate"
// command prints the same results.
package preflight
