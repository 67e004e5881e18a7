// Package check turns captured guest output, exit codes and probe results
// into Verdicts.
//
// Evaluators are pure. Absent expectations produce no verdicts, so a test
// case without checks yields an empty set, which passes.
package check
