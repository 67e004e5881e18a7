// Package runner runs a batch of test cases one after another.
//
// Cases are selected with key=value filters over the test-case fields
// (image, arch, plat, memory, timeout). Every selected case is executed and
// classified as passed, failed or errored; a case that errors or panics is
// recorded and the batch moves on.
package runner
