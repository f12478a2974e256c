// Package logs reads the daemon log file for the CLI.
//
// Last returns the trailing lines of a log, optionally only those that
// mention a workflow id. Follow polls the file from an offset and hands new
// lines to a callback until its context ends, starting over when the file
// shrinks after rotation.
package logs
