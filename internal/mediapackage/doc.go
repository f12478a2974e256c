// Package mediapackage models the artifact a workflow instance owns: a media
// package made of tracks, catalogs and attachments, each labelled with a
// flavor (type/subtype) and free-form tags.
//
// Operation handlers read and mutate a clone of the package and hand the
// result back to the engine, so the types here are plain values with a deep
// Clone.
package mediapackage
