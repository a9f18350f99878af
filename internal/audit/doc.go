// Package audit reconciles a plan's deliverables with the workspace on disk.
//
// Run resolves every deliverable against the workspace root, classifies it
// (present, missing, stub, symbol_missing, outside_root), computes verified
// and claimed completion percentages, and turns every discrepancy into a
// Finding. When a trigger inventory is supplied its findings are folded in
// and its counts are compared with the previous snapshot to surface drift.
package audit
