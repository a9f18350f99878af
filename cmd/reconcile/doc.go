// Package main hosts the reconcile CLI entrypoint and command graph.
//
// The Cobra command tree audits plans against the workspace, inventories
// trigger folders, browses audit history and recorded file events from the
// SQLite store, runs the daemon in the foreground, and scaffolds
// configuration. Heavy lifting lives in internal/api so the daemon and the
// CLI share one audit pipeline.
package main
