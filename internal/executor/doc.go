// Package executor runs one test case end to end.
//
// A run moves through these states:
//
//	built → launched → naturally_exited ─────────────┐
//	                 └→ timed_out → probed → stopped → evaluated
//
// A guest that exits before its timeout is never probed. A guest that is
// still running at the timeout is treated as up: its published ports and
// HTTP endpoints are probed, then it is sent SIGTERM and, if it outlives
// the stop grace, SIGKILL. Any error or panic between launch and stop kills
// the process group before it propagates.
package executor
