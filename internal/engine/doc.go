// Package engine owns the test lifecycle and drives persona
// simulations to completion.
//
// The engine is the only component with real concurrency concerns.
// For a running test it fans out one runner task per persona under a
// bounded worker pool, collects results, isolates per-persona
// failures, and transitions the test to its terminal state.
//
// ARCHITECTURE:
//
// Bounded fan-out:
// Runner tasks run in parallel, gated by a semaphore sized to respect
// the provider's rate limits. The pool size is the only shared mutable
// resource the tasks contend for; everything else they touch (the
// ledger's append path aside) is task-local.
//
// Ordering:
// Results are slotted by persona index, never by completion time, so
// Test.Results always matches the input persona order regardless of
// how the underlying tasks interleave.
//
// Lifecycle:
//
//	draft → running → completed  (all runs attempted, ≥1 succeeded)
//	                → failed     (all runs failed, precondition violated,
//	                              or the run was cancelled)
//
// Terminal states admit no transitions. The storage collaborator is
// written exactly once at Start and once at the terminal transition;
// readers polling through storage never observe a partially updated
// result list.
//
// Cancellation is cooperative: Cancel stops dispatching new tasks and
// cancels the context carried by in-flight provider calls. Personas
// never dispatched receive a cancelled result marker so the result
// list stays full-length. Usage already recorded for aborted calls is
// retained — partial spend is real spend.
//
// The engine holds no state across separate test runs beyond what is
// persisted.
package engine
