// Package watch observes trigger folders and plan files with fsnotify and
// emits debounced change events.
//
// The triggers root, every agent folder, and every lifecycle folder are
// watched; folders created later are picked up as they appear. Plan files are
// watched through their parent directory so editors that replace files on
// save are still seen.
package watch
