package trigger

import "strings"

// State is the lifecycle position of a trigger file, derived from its folder.
type State string

const (
	StateInbox     State = "inbox"
	StateProcessed State = "processed"
	StateArchive   State = "archive"
	StateFailed    State = "failed"
)

var stateDirs = map[State]string{
	StateInbox:     "01_inbox",
	StateProcessed: "02_processed",
	StateArchive:   "03_archive",
	StateFailed:    "03_failed",
}

// States lists every lifecycle state in folder order.
func States() []State {
	return []State{StateInbox, StateProcessed, StateArchive, StateFailed}
}

// Dir returns the folder name holding files in this state.
func (s State) Dir() string {
	return stateDirs[s]
}

// Terminal reports whether the state is an end of the lifecycle.
func (s State) Terminal() bool {
	return s != StateInbox
}

// StateFromDir maps a folder name to its lifecycle state. Matching is
// case-insensitive and also accepts the bare state name ("inbox").
func StateFromDir(dir string) (State, bool) {
	normalized := strings.ToLower(strings.TrimSpace(dir))
	for state, name := range stateDirs {
		if normalized == name || normalized == string(state) {
			return state, true
		}
	}
	return "", false
}

// ParseState parses a user-supplied state filter.
func ParseState(value string) (State, bool) {
	return StateFromDir(value)
}
