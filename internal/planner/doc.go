// Package planner decides which job a file needs next to reach its target
// stage.
//
// Plan is a pure function over a file's assets (oldest first) and a target
// stage. The Planner wraps it with the store: RequestStage serves user
// commands, Continue runs after each successful job to chain toward the
// stored target, Cancel drops a standing goal on user request, and
// RecordFailure fails a job and drops the goal in one step. A planner-wide mutex makes every
// read-plan-apply sequence atomic with respect to the others, so a command
// and a worker continuation can never both enqueue work for the same file.
package planner
