// Package combined benchmarks a work-stealing worker hot loop end to end.
//
// A worker iteration checks for a stop signal, polls a shared sampling
// ticker, pops its own queue and falls back to stealing. The isolated
// micro-benchmarks in queue, cancel and tick price each step; these price
// the sum, and compare the steal queue against a buffered channel and the
// sharded ring from go-lock-free-ring under the same producer shapes.
package combined
