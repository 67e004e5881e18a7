// Package testcase defines the typed model of a kraftcheck test case.
//
// A TestCase names a unikernel image, the platform and architecture to boot
// it on, how to launch it (memory, port mappings, extra flags, timeout) and
// which checks to run against the guest. Every check category is optional:
// a nil OutputCheck or ReturnCodeCheck, or an empty HTTP slice, means the
// category is skipped rather than passed or failed.
//
// Platform and Architecture are closed sets. Description strings are mapped
// onto them with ParsePlatform and ParseArchitecture, which reject unknown
// values.
package testcase
