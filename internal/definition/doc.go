// Package definition holds the authored, immutable side of the workflow
// model: operation definitions, the workflow definitions that order them,
// and the catalog that loads definitions from disk.
//
// Steps inside a workflow are addressed by position, never by id, because
// the same operation id may appear more than once. A definition is validated
// when it is constructed or registered; nothing downstream defaults a bad
// value into a running instance.
package definition
