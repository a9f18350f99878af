package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"reconcile/internal/logging"
	"reconcile/internal/trigger"
)

// ErrRootMissing reports that the triggers root directory does not exist.
var ErrRootMissing = errors.New("triggers root missing")

// Options controls a scan.
type Options struct {
	Root         string
	Agents       []string
	StaleAfter   time.Duration
	MaxBodyBytes int64
	ReadBodies   bool
	Now          func() time.Time
	Logger       *slog.Logger
}

// Scan inventories every agent's lifecycle folders under opts.Root.
func Scan(ctx context.Context, opts Options) (*Inventory, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return nil, errors.New("inventory root is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, root)
		}
		return nil, fmt.Errorf("stat triggers root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("triggers root %s is not a directory", root)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	logger := logging.NewComponentLogger(opts.Logger, "inventory")

	inv := &Inventory{
		Root:      root,
		ScannedAt: now().UTC(),
		Counts:    map[string]Counts{},
		Totals:    Counts{},
	}
	for _, state := range trigger.States() {
		inv.Totals[state] = 0
	}

	agents, err := resolveAgents(root, opts.Agents, inv)
	if err != nil {
		return nil, err
	}

	for _, agent := range agents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inv.Agents = append(inv.Agents, agent.name)
		counts := Counts{}
		for _, state := range trigger.States() {
			counts[state] = 0
		}
		inv.Counts[agent.name] = counts
		scanAgent(logging.WithContext(logging.WithAgent(ctx, agent.name), logger), inv, agent, opts)
	}

	for _, entry := range inv.Entries {
		inv.Counts[entry.Agent][entry.State]++
		inv.Totals[entry.State]++
	}

	flagStale(inv, opts.StaleAfter, inv.ScannedAt)
	flagDuplicates(inv)
	sortInventory(inv)

	logger.Debug("trigger inventory scanned",
		logging.String("root", root),
		logging.Int("agents", len(inv.Agents)),
		logging.Int("files", len(inv.Entries)),
		logging.Int("findings", len(inv.Findings)),
	)
	return inv, nil
}

type agentDir struct {
	name string
	path string
}

func resolveAgents(root string, configured []string, inv *Inventory) ([]agentDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read triggers root: %w", err)
	}
	var dirs []agentDir
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, agentDir{name: entry.Name(), path: filepath.Join(root, entry.Name())})
	}
	if len(configured) == 0 {
		return dirs, nil
	}

	// Two configured spellings of one agent must not scan its folder twice.
	claimed := make(map[string]bool, len(dirs))
	var resolved []agentDir
	for _, name := range configured {
		found := false
		for _, dir := range dirs {
			if !trigger.SameAgent(name, dir.name) {
				continue
			}
			found = true
			if !claimed[dir.path] {
				claimed[dir.path] = true
				resolved = append(resolved, agentDir{name: name, path: dir.path})
			}
			break
		}
		if !found {
			inv.Findings = append(inv.Findings, Finding{
				Kind:   FindingMissingAgent,
				Agent:  name,
				Path:   filepath.Join(root, name),
				Detail: "configured agent has no trigger folder",
			})
		}
	}
	return resolved, nil
}

func scanAgent(logger *slog.Logger, inv *Inventory, agent agentDir, opts Options) {
	entries, err := os.ReadDir(agent.path)
	if err != nil {
		logging.WarnWithContext(logger, "agent folder unreadable; skipping", "inventory_agent_unreadable",
			logging.String("path", agent.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "agent triggers missing from inventory"),
		)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(agent.path, name)
		state, ok := trigger.StateFromDir(name)
		if !ok || !entry.IsDir() {
			inv.Findings = append(inv.Findings, Finding{
				Kind:   FindingUnknownDir,
				Agent:  agent.name,
				Path:   path,
				Detail: "entry outside the lifecycle folders",
			})
			continue
		}
		scanState(logger, inv, agent.name, state, path, opts)
	}
}

func scanState(logger *slog.Logger, inv *Inventory, agent string, state trigger.State, dir string, opts Options) {
	files, err := os.ReadDir(dir)
	if err != nil {
		logging.WarnWithContext(logger, "state folder unreadable; skipping", "inventory_state_unreadable",
			logging.String("path", dir),
			logging.Error(err),
		)
		return
	}
	for _, file := range files {
		if file.IsDir() || !trigger.IsCandidate(file.Name()) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		info, err := file.Info()
		if err != nil {
			// Removed between ReadDir and Info; the next scan will settle it.
			continue
		}
		entry := Entry{
			Agent:   agent,
			State:   state,
			Path:    path,
			ModTime: info.ModTime().UTC(),
			Size:    info.Size(),
		}
		parsed, err := trigger.ParseName(file.Name())
		if err != nil {
			inv.Findings = append(inv.Findings, Finding{
				Kind:   FindingInvalidName,
				Agent:  agent,
				Path:   path,
				Detail: err.Error(),
			})
		} else {
			entry.Name = parsed
			entry.Valid = true
		}

		if opts.ReadBodies {
			body, err := trigger.ReadBody(path, opts.MaxBodyBytes)
			if err != nil {
				inv.Findings = append(inv.Findings, Finding{
					Kind:   FindingInvalidBody,
					Agent:  agent,
					Path:   path,
					Detail: err.Error(),
				})
			} else {
				entry.Body = &body
				if target := body.TargetAgent(); target != "" && !trigger.SameAgent(target, agent) {
					inv.Findings = append(inv.Findings, Finding{
						Kind:   FindingMisrouted,
						Agent:  agent,
						Path:   path,
						Detail: fmt.Sprintf("body targets %q", target),
					})
				}
			}
		}
		inv.Entries = append(inv.Entries, entry)
	}
}

func flagStale(inv *Inventory, staleAfter time.Duration, now time.Time) {
	if staleAfter <= 0 {
		return
	}
	for _, entry := range inv.Entries {
		if entry.State != trigger.StateInbox {
			continue
		}
		age := now.Sub(entry.Timestamp())
		if age <= staleAfter {
			continue
		}
		inv.Findings = append(inv.Findings, Finding{
			Kind:   FindingStale,
			Agent:  entry.Agent,
			Path:   entry.Path,
			Detail: fmt.Sprintf("waiting in inbox for %s", age.Truncate(time.Minute)),
		})
	}
}

// taskKey identifies a task across folders. The fourth name segment is
// sometimes an agent name rather than a task id, so the title is part of the
// key unless the body carries an explicit task id.
func taskKey(entry Entry) string {
	if entry.Body != nil {
		if id := entry.Body.TaskID(); id != "" {
			return "id:" + strings.ToLower(id)
		}
	}
	if !entry.Valid {
		return ""
	}
	return "name:" + strings.ToLower(entry.Name.Title) + "|" + strings.ToLower(entry.Name.TaskID)
}

func flagDuplicates(inv *Inventory) {
	type placement struct {
		states map[trigger.State]struct{}
		paths  []string
	}
	perAgent := map[string]map[string]*placement{}
	inboxAgents := map[string]map[string]struct{}{}
	inboxPaths := map[string][]string{}

	for _, entry := range inv.Entries {
		key := taskKey(entry)
		if key == "" {
			continue
		}
		byKey, ok := perAgent[entry.Agent]
		if !ok {
			byKey = map[string]*placement{}
			perAgent[entry.Agent] = byKey
		}
		p, ok := byKey[key]
		if !ok {
			p = &placement{states: map[trigger.State]struct{}{}}
			byKey[key] = p
		}
		p.states[entry.State] = struct{}{}
		p.paths = append(p.paths, entry.Path)

		if entry.State == trigger.StateInbox {
			if inboxAgents[key] == nil {
				inboxAgents[key] = map[string]struct{}{}
			}
			inboxAgents[key][entry.Agent] = struct{}{}
			inboxPaths[key] = append(inboxPaths[key], entry.Path)
		}
	}

	for agent, byKey := range perAgent {
		for key, p := range byKey {
			if len(p.states) < 2 {
				continue
			}
			states := make([]string, 0, len(p.states))
			for _, state := range trigger.States() {
				if _, ok := p.states[state]; ok {
					states = append(states, string(state))
				}
			}
			sort.Strings(p.paths)
			inv.Findings = append(inv.Findings, Finding{
				Kind:   FindingDuplicate,
				Agent:  agent,
				Path:   p.paths[0],
				Detail: fmt.Sprintf("task %s present in %s", displayKey(key), strings.Join(states, ", ")),
			})
		}
	}
	for key, agents := range inboxAgents {
		if len(agents) < 2 {
			continue
		}
		names := make([]string, 0, len(agents))
		for agent := range agents {
			names = append(names, agent)
		}
		sort.Strings(names)
		paths := inboxPaths[key]
		sort.Strings(paths)
		inv.Findings = append(inv.Findings, Finding{
			Kind:   FindingDuplicate,
			Path:   paths[0],
			Detail: fmt.Sprintf("task %s waiting in inboxes of %s", displayKey(key), strings.Join(names, ", ")),
		})
	}
}

func displayKey(key string) string {
	key = strings.TrimPrefix(key, "id:")
	key = strings.TrimPrefix(key, "name:")
	return strings.Replace(key, "|", "/", 1)
}

func stateOrder(state trigger.State) int {
	for i, s := range trigger.States() {
		if s == state {
			return i
		}
	}
	return len(trigger.States())
}

func sortInventory(inv *Inventory) {
	sort.Strings(inv.Agents)
	sort.SliceStable(inv.Entries, func(i, j int) bool {
		a, b := inv.Entries[i], inv.Entries[j]
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		if a.State != b.State {
			return stateOrder(a.State) < stateOrder(b.State)
		}
		if !a.Timestamp().Equal(b.Timestamp()) {
			return a.Timestamp().Before(b.Timestamp())
		}
		return a.Path < b.Path
	})
	sort.SliceStable(inv.Findings, func(i, j int) bool {
		a, b := inv.Findings[i], inv.Findings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Detail < b.Detail
	})
}
