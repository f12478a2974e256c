// Package manager drives stored workflow instances through the engine.
//
// A Manager runs a fixed pool of workers. Each worker claims the oldest
// instance with work to do from the store, keeps the claim alive with
// heartbeats while the engine advances it, and releases it once the engine
// returns: finished, paused for input, or interrupted by shutdown. Claims
// abandoned by a crashed worker are reclaimed after the heartbeat timeout and
// picked up again through Engine.Recover.
//
// Resume and stop requests recorded in the store are consumed here, so the
// CLI never has to talk to a live engine. Terminal and paused outcomes are
// published through the notifications service.
package manager
