// Command mediaflow manages workflow definitions and instances.
//
// Instance commands read and write the workflow database directly. The
// `run` command processes runnable instances in the foreground and exits;
// `daemon` keeps workers running until interrupted.
package main
