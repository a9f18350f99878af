// Package api defines wire-format types and the shared workflows behind the
// CLI and the daemon HTTP API.
//
// # Key Types
//
// AuditSummary / Audit: transport views of stored audit runs.
//
// TriggerInventory: per-agent lifecycle counts, entries, and findings.
//
// DaemonStatus: runtime information including the last audit per plan.
//
// # Workflows
//
// RunAudit parses a plan, inventories trigger folders, audits the workspace,
// persists the run, and optionally writes the Markdown report. ScanTriggers
// runs a read-only inventory with configuration defaults.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Lifecycle states are exposed by name (inbox, processed, archive, failed).
package api
