// Package preflight provides readiness checks for the paths, plans, and
// state that reconcile depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on start and logs every failed check as a
//     warning; it keeps running so a missing triggers folder can appear later.
//   - The CLI "reconcile status" command renders RunAll together with
//     CheckDatabase and CheckDaemon.
package preflight
