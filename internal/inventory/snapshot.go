package inventory

import (
	"sort"
	"time"

	"reconcile/internal/trigger"
)

// Snapshot is the persisted shape of an inventory: counts only.
type Snapshot struct {
	TakenAt  time.Time         `json:"taken_at"`
	Root     string            `json:"root"`
	Counts   map[string]Counts `json:"counts"`
	Findings int               `json:"findings"`
}

// Snapshot reduces the inventory to its per-agent counts.
func (inv *Inventory) Snapshot() Snapshot {
	snap := Snapshot{Counts: map[string]Counts{}}
	if inv == nil {
		return snap
	}
	snap.TakenAt = inv.ScannedAt
	snap.Root = inv.Root
	snap.Findings = len(inv.Findings)
	for agent, counts := range inv.Counts {
		copied := Counts{}
		for state, n := range counts {
			copied[state] = n
		}
		snap.Counts[agent] = copied
	}
	return snap
}

// Total sums every agent's counts.
func (s Snapshot) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c.Total()
	}
	return total
}

// CountChange is a per-agent, per-state difference between two snapshots.
type CountChange struct {
	Agent  string        `json:"agent"`
	State  trigger.State `json:"state"`
	Before int           `json:"before"`
	After  int           `json:"after"`
}

// Delta returns After - Before.
func (c CountChange) Delta() int {
	return c.After - c.Before
}

// CompareSnapshots lists every agent/state whose count differs. Agents that
// appear in only one snapshot count as zero in the other.
func CompareSnapshots(before, after Snapshot) []CountChange {
	agents := map[string]struct{}{}
	for agent := range before.Counts {
		agents[agent] = struct{}{}
	}
	for agent := range after.Counts {
		agents[agent] = struct{}{}
	}
	names := make([]string, 0, len(agents))
	for agent := range agents {
		names = append(names, agent)
	}
	sort.Strings(names)

	var changes []CountChange
	for _, agent := range names {
		for _, state := range trigger.States() {
			b := before.Counts[agent][state]
			a := after.Counts[agent][state]
			if a == b {
				continue
			}
			changes = append(changes, CountChange{Agent: agent, State: state, Before: b, After: a})
		}
	}
	return changes
}
