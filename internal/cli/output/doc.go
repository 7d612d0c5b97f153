// Package output renders command results as a table, JSON or YAML.
//
// Values read from the store are arbitrary decoded documents, so the table
// format falls back to compact JSON for anything that is not naturally
// tabular.
package output
