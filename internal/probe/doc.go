// Package probe checks the TCP ports and HTTP endpoints a running guest
// exposes through its published port mappings.
//
// Every probe is bounded by a timeout and none is retried. A port that
// refuses connections is an ordinary result carrying the OS errno; an HTTP
// request that never gets a response is a *ConnectionFailure.
package probe
