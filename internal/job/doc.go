// Package job is the asynchronous work collaborator operation handlers use.
//
// Service is the contract handlers depend on: submit work, poll its status,
// read its payload and timings. Cluster is the in-process implementation: it
// publishes each job on a watermill pub/sub topic and a fixed set of worker
// nodes consume the topic and run the processor registered for the job type.
// Await is the canonical handler idiom of blocking until a set of jobs is
// terminal.
package job
