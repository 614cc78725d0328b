// Package tasks implements the prompt-to-playlist generation pipeline.
//
// The core abstraction is [GeneratorEngine], which chains one text-generation
// call with per-suggestion upstream searches. Searches run in suggestion
// order with independent error capture: one failed lookup never aborts the
// batch, and only the aggregate sufficiency gate can turn partial failure
// into a reported error.
package tasks
