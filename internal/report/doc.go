// Package report renders audit results as Markdown files with YAML front
// matter and manages their retention in the report directory.
package report
