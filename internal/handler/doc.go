// Package handler defines the contract between the engine and the pluggable
// operation handlers, plus the registry that binds handlers to operation ids.
//
// Handlers receive an Invocation snapshot and answer with a Result; the
// engine alone updates operation bookkeeping from that Result.
package handler
