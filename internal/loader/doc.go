// Package loader reads test-case descriptions from JSON, YAML and TOML files
// and writes them back out.
//
// JSON and YAML descriptions are a top-level list of test cases; TOML uses
// [[test_case]] array tables. Every case is validated while loading, and the
// first invalid one fails the whole file with an *errors.ParseError naming
// the case index and the field.
//
// Extra launcher args keep their document order in every format, so a
// description converted between formats builds the same command line.
package loader
