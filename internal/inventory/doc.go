// Package inventory walks agent trigger folders and reports what it finds.
//
// The scan is read-only: files are never created, moved, or deleted. Each
// agent directory under the triggers root holds one folder per lifecycle state;
// every trigger file is parsed, optionally decoded, and counted, and problems
// (malformed names or bodies, stale inbox items, duplicated task ids, files
// addressed to a different agent) are reported as findings rather than errors
// so one bad file never hides the rest of the inventory.
package inventory
