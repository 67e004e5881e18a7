// Package report renders batch results.
//
// Console streams a grouped, glyph-annotated report while cases run, and
// prints a summary line at the end. WriteJSON emits the same information in
// a machine-readable form. Artifacts saves each case's command line, output
// streams and verdicts to disk.
package report
