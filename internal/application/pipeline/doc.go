// Package pipeline implements the essay generation pipeline: a sequential
// setup prefix (strategize, gather, outline), a fan-out into three fixed
// writer branches running produce/evaluate/revise/audit loops, and a
// fan-in aggregator that classifies the run outcome.
//
// Branch goroutines never share writable state. Each stage emits a partial
// Update into a channel; a single accumulator goroutine folds updates into
// the run state with Merge. The aggregator reads the folded state only
// after every branch has reported terminal state.
package pipeline
