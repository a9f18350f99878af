// Package plan parses Markdown plan documents into the list of deliverables
// an audit verifies against the workspace.
//
// A plan may start with YAML front matter (title, owner, root, status). Every
// list item that names a file path, either in a code span or as a bare token
// with a recognised extension, becomes a Deliverable. Task list checkboxes
// record whether the author claims the item is done.
package plan
