// Package operations holds the operation handlers mediaflow ships with.
//
//   - defaults: fills in workflow properties that were not supplied at submit.
//   - tag: rewrites flavors and tags on selected elements, optionally on copies.
//   - inspect: submits one job per selected track and records size, checksum
//     and mime type from the job payloads.
//   - approve: holds the workflow until an operator resumes it with
//     approved=true or approved=false.
//   - cleanup: drops elements by flavor and optionally deletes their local
//     files from the workspace.
//
// Register wires the handlers into a handler.Registry; RegisterProcessors
// installs the job processors the job-backed handlers depend on.
package operations
