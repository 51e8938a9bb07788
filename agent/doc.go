// Package agent implements the supervisor / worker dispatch loop:
//
//  1. Roster: the closed set of worker names resolved at startup
//  2. Supervisor: decides which worker acts next, or FINISH
//  3. Worker: performs one bounded task, calling tools, and returns exactly
//     one message authored with its own name
//  4. Dispatcher: alternates supervisor and worker turns over one
//     conversation until FINISH, a contract violation or the turn ceiling
//
// Execution Model:
//   - Turns within a run are strictly sequential; the conversation is owned
//     by exactly one run
//   - Rosters, workers and supervisors are read-only after construction and
//     are shared safely across concurrent runs
//   - Cancellation is observed between turns, never inside a tool call
package agent
