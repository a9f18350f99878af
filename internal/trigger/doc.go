// Package trigger parses and formats agent trigger file names and decodes
// their loosely structured JSON bodies.
//
// A trigger file is named {timestamp}__{KIND}__{title}__{task-id}.json and
// lives in one of an agent's lifecycle folders (01_inbox, 02_processed,
// 03_archive, 03_failed). Bodies carry no enforced schema; Body exposes typed
// accessors for the handful of fields that agents conventionally write and
// keeps everything else available as raw values.
package trigger
