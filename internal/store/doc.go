// Package store persists audit history, trigger snapshots, and observed
// trigger file events in SQLite.
//
// The Store owns the database connection, applies the embedded migrations in
// file-name order on open, and retries writes that hit SQLITE_BUSY so the CLI
// and the daemon can share one database file. Audit results are stored in
// normalized tables (audits, audit_checks, audit_findings) and reassembled by
// GetAudit; trigger snapshots back the count drift comparison between runs.
//
// Add schema changes as a new numbered file under migrations/; applied
// versions are tracked in schema_migrations.
package store
