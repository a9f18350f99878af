// Package daemon coordinates the long-running reconcile process.
//
// It wires configuration, the audit store, the file watcher, and the HTTP
// API into a single lifecycle with flock-based locking to prevent multiple
// instances. On start every configured plan is audited; afterwards plan and
// trigger changes schedule debounced re-audits, trigger events are recorded
// in the store, and a rescan ticker re-audits everything periodically.
//
// Keep orchestration logic here: parsing, auditing, and reporting live in
// their own packages and are reached through api.RunAudit.
package daemon
