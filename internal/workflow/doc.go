// Package workflow holds the runtime side of the model: workflow instances,
// the operation instances they own, and the operation state machine.
//
// An Instance is built by deep-copying a definition.Workflow, so many
// instances can share one definition without aliasing. Operation state only
// changes through the transition methods on Operation, which reject moves the
// state machine does not allow with services.ErrInvalidState and leave the
// operation untouched.
//
// Operations are identified by (template id, position). Two Operation values
// decoded from the same stored instance compare Equal even though they are
// different objects, which is what lets a restarted engine find its paused
// step again.
package workflow
