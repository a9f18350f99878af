package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"reconcile/internal/logging"
	"reconcile/internal/trigger"
)

// Kind distinguishes trigger file events from plan file events.
type Kind string

const (
	KindTrigger Kind = "trigger"
	KindPlan    Kind = "plan"
)

// Operation names reported in Event.Op.
const (
	OpCreate = "create"
	OpWrite  = "write"
	OpRemove = "remove"
	OpRename = "rename"
)

// Event is one debounced file change.
type Event struct {
	Kind  Kind          `json:"kind"`
	Op    string        `json:"op"`
	Path  string        `json:"path"`
	Agent string        `json:"agent,omitempty"`
	State trigger.State `json:"state,omitempty"`
	Time  time.Time     `json:"time"`
}

// Options configures a Watcher.
type Options struct {
	TriggersDir string
	Plans       []string
	Debounce    time.Duration
	Logger      *slog.Logger
}

// Watcher emits Events for trigger and plan changes. A Watcher cannot be
// restarted once stopped.
type Watcher struct {
	root     string
	plans    map[string]struct{}
	debounce time.Duration
	logger   *slog.Logger
	events   chan Event

	mu      sync.Mutex
	running bool
	stopped bool
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	watched map[string]struct{}
}

// New validates options and prepares a Watcher.
func New(opts Options) (*Watcher, error) {
	root := strings.TrimSpace(opts.TriggersDir)
	if root == "" && len(opts.Plans) == 0 {
		return nil, errors.New("watch requires a triggers directory or plan files")
	}
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve triggers dir: %w", err)
		}
		root = abs
	}
	plans := make(map[string]struct{}, len(opts.Plans))
	for _, p := range opts.Plans {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve plan %q: %w", p, err)
		}
		plans[abs] = struct{}{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		root:     root,
		plans:    plans,
		debounce: debounce,
		logger:   logging.NewComponentLogger(opts.Logger, "watch"),
		events:   make(chan Event, 64),
		watched:  map[string]struct{}{},
	}, nil
}

// Events returns the channel debounced events are delivered on. It is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching. Missing directories are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("watcher already running")
	}
	if w.stopped {
		return errors.New("watcher stopped")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	if w.root != "" {
		if _, err := os.Stat(w.root); err != nil {
			logging.WarnWithContext(w.logger, "triggers directory unavailable; trigger changes not watched", "watch_root_missing",
				logging.String("path", w.root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "create paths.triggers_dir or fix the configured path"),
			)
		} else {
			w.addTree(w.root, 0, nil)
		}
	}
	for _, dir := range w.planDirs() {
		if err := w.addWatch(dir); err != nil {
			logging.WarnWithContext(w.logger, "plan directory unavailable; plan changes not watched", "watch_plan_dir_missing",
				logging.String("path", dir),
				logging.Error(err),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.stopped = true
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) planDirs() []string {
	seen := map[string]struct{}{}
	var dirs []string
	for p := range w.plans {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) addWatch(dir string) error {
	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = struct{}{}
	return nil
}

// addTree watches dir and its sub-directories down to the lifecycle level
// (root=0, agent=1, state=2). Trigger files already present in a newly
// watched state folder are reported through found so nothing written before
// the watch was established is lost.
func (w *Watcher) addTree(dir string, depth int, found func(string)) {
	if depth > 2 {
		return
	}
	if err := w.addWatch(dir); err != nil {
		w.logger.Debug("watch add failed",
			logging.String("path", dir),
			logging.Error(err),
		)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		if entry.IsDir() {
			w.addTree(path, depth+1, found)
			continue
		}
		if depth == 2 && found != nil && trigger.IsCandidate(name) {
			found(path)
		}
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)
	defer func() {
		_ = w.fsw.Close()
	}()

	pending := map[string]Event{}
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	schedule := func() {
		if len(pending) == 0 {
			return
		}
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev, pending)
			schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some changes may be missed until the next rescan"),
			)
		case <-timerC:
			timerC = nil
			if !w.flush(ctx, pending) {
				return
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, pending map[string]Event) {
	path := filepath.Clean(ev.Name)
	op := opName(ev.Op)
	if op == "" {
		return
	}

	if ev.Has(fsnotify.Create) && w.root != "" {
		if depth, ok := w.depth(path); ok && depth <= 2 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.mu.Lock()
				w.addTree(path, depth, func(found string) {
					w.enqueue(pending, found, OpCreate)
				})
				w.mu.Unlock()
				return
			}
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.watched, path)
		w.mu.Unlock()
	}
	w.enqueue(pending, path, op)
}

func (w *Watcher) enqueue(pending map[string]Event, path, op string) {
	ev, ok := w.classify(path)
	if !ok {
		return
	}
	ev.Op = op
	ev.Time = time.Now().UTC()
	if prev, exists := pending[path]; exists && prev.Op == OpCreate && op == OpWrite {
		ev.Op = OpCreate
	}
	pending[path] = ev
}

func (w *Watcher) classify(path string) (Event, bool) {
	if _, ok := w.plans[path]; ok {
		return Event{Kind: KindPlan, Path: path}, true
	}
	if w.root == "" {
		return Event{}, false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return Event{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[0] == ".." {
		return Event{}, false
	}
	state, ok := trigger.StateFromDir(parts[1])
	if !ok || !trigger.IsCandidate(parts[2]) {
		return Event{}, false
	}
	return Event{Kind: KindTrigger, Path: path, Agent: parts[0], State: state}, true
}

func (w *Watcher) depth(path string) (int, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return 0, false
	}
	return len(strings.Split(filepath.ToSlash(rel), "/")), true
}

func (w *Watcher) flush(ctx context.Context, pending map[string]Event) bool {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		select {
		case w.events <- pending[p]:
		case <-ctx.Done():
			return false
		}
		delete(pending, p)
	}
	return true
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	default:
		return ""
	}
}
