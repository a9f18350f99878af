package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reconcile/internal/api"
	"reconcile/internal/audit"
	"reconcile/internal/config"
	"reconcile/internal/logging"
	"reconcile/internal/preflight"
	"reconcile/internal/store"
	"reconcile/internal/watch"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another reconcile daemon instance is already running")

type planState struct {
	lastAudit *api.AuditSummary
	lastError string
}

// Daemon audits configured plans continuously and serves the read-only API.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	plans  []string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	watcher   *watch.Watcher
	api       *apiServer

	// auditMu serializes audit runs between the loop and Start.
	auditMu sync.Mutex

	mu       sync.RWMutex
	state    map[string]*planState
	lastScan time.Time
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	plans := make([]string, 0, len(cfg.Audit.Plans))
	seen := map[string]struct{}{}
	for _, p := range cfg.Audit.Plans {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve plan %q: %w", p, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		plans = append(plans, abs)
	}
	sort.Strings(plans)

	state := make(map[string]*planState, len(plans))
	for _, p := range plans {
		state[p] = &planState{}
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		plans:    plans,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		state:    state,
	}, nil
}

// Start acquires the instance lock, audits every plan, and launches the
// watcher, the API server, and the event loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	fail := func(err error) error {
		cancel()
		if d.watcher != nil {
			d.watcher.Stop()
			d.watcher = nil
		}
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now().UTC()
	d.logPreflight(runCtx)
	d.pruneHistory(runCtx)
	d.auditAll(runCtx)

	watcher, err := watch.New(watch.Options{
		TriggersDir: d.cfg.Paths.TriggersDir,
		Plans:       d.plans,
		Debounce:    d.cfg.Debounce(),
		Logger:      d.logger,
	})
	if err != nil {
		return fail(fmt.Errorf("create watcher: %w", err))
	}
	if err := watcher.Start(runCtx); err != nil {
		return fail(fmt.Errorf("start watcher: %w", err))
	}
	d.watcher = watcher

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		return fail(fmt.Errorf("create api server: %w", err))
	}
	if err := srv.start(runCtx); err != nil {
		return fail(err)
	}
	d.api = srv

	d.cancel = cancel
	d.running.Store(true)
	d.wg.Add(1)
	go d.loop(runCtx, watcher.Events())

	d.logger.Info("reconcile daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("plans", len(d.plans)),
		logging.String("triggers_dir", d.cfg.Paths.TriggersDir),
	)
	return nil
}

func (d *Daemon) logPreflight(ctx context.Context) {
	for _, check := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldImpact, "audits may be incomplete until this is fixed"),
			logging.String(logging.FieldErrorHint, "run `reconcile status` for the full readiness report"),
		)
	}
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	d.api.stop()
	d.api = nil
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reconcile daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddress returns the bound API address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) api.DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		TriggersDir:  d.cfg.Paths.TriggersDir,
		Plans:        make([]api.PlanStatus, 0, len(d.plans)),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.Format(time.RFC3339)
	}
	if !d.lastScan.IsZero() {
		status.LastScan = d.lastScan.Format(time.RFC3339)
	}
	for _, p := range d.plans {
		ps := api.PlanStatus{Path: p}
		if st := d.state[p]; st != nil {
			ps.LastAudit = st.lastAudit
			ps.LastError = st.lastError
		}
		status.Plans = append(status.Plans, ps)
	}
	return status
}

func (d *Daemon) loop(ctx context.Context, events <-chan watch.Event) {
	defer d.wg.Done()

	var tickerC <-chan time.Time
	if interval := d.cfg.RescanInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickerC = ticker.C
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()
	var debounceC <-chan time.Time

	dirty := map[string]struct{}{}
	scanDirty := false

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.recordEvent(ctx, ev)
			switch ev.Kind {
			case watch.KindPlan:
				dirty[ev.Path] = struct{}{}
			case watch.KindTrigger:
				// Every audit folds the trigger inventory in.
				for _, p := range d.plans {
					dirty[p] = struct{}{}
				}
				scanDirty = len(d.plans) == 0
			}
			debounce.Reset(d.cfg.Debounce())
			debounceC = debounce.C
		case <-debounceC:
			debounceC = nil
			for _, p := range d.plans {
				if _, ok := dirty[p]; ok {
					d.auditPlan(ctx, p)
				}
			}
			clear(dirty)
			if scanDirty {
				d.scanTriggers(ctx)
				scanDirty = false
			}
		case <-tickerC:
			d.pruneHistory(ctx)
			d.auditAll(ctx)
		}
	}
}

func (d *Daemon) recordEvent(ctx context.Context, ev watch.Event) {
	_, err := d.store.RecordEvent(ctx, store.Event{
		ObservedAt: ev.Time,
		Kind:       string(ev.Kind),
		Op:         ev.Op,
		Path:       ev.Path,
		Agent:      ev.Agent,
		State:      string(ev.State),
	})
	if err != nil && ctx.Err() == nil {
		logging.WarnWithContext(d.logger, "failed to record file event", "event_record_failed",
			logging.String("path", ev.Path),
			logging.Error(err),
		)
	}
	d.logger.Debug("file event",
		logging.String(logging.FieldEventType, "file_"+ev.Op),
		logging.String("kind", string(ev.Kind)),
		logging.String("path", ev.Path),
		logging.String(logging.FieldAgent, ev.Agent),
	)
}

func (d *Daemon) auditAll(ctx context.Context) {
	if len(d.plans) == 0 {
		d.scanTriggers(ctx)
		return
	}
	for _, p := range d.plans {
		if ctx.Err() != nil {
			return
		}
		d.auditPlan(ctx, p)
	}
}

func (d *Daemon) auditPlan(ctx context.Context, planPath string) {
	d.auditMu.Lock()
	defer d.auditMu.Unlock()

	out, err := api.RunAudit(ctx, api.RunAuditRequest{
		Config:       d.cfg,
		Store:        d.store,
		PlanPath:     planPath,
		CheckSymbols: d.cfg.Audit.CheckSymbols,
		WriteReport:  d.cfg.Audit.WriteReports,
		Logger:       d.logger,
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.state[planPath]
	if st == nil {
		st = &planState{}
		d.state[planPath] = st
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		st.lastError = err.Error()
		logging.WarnWithContext(d.logger, "plan audit failed", "plan_audit_failed",
			logging.String(logging.FieldPlan, planPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "plan status is stale until the next successful audit"),
			logging.String(logging.FieldErrorHint, "check that the plan file exists and is readable"),
		)
		return
	}
	summary := api.SummarizeResult(out.Result)
	st.lastAudit = &summary
	st.lastError = ""
	d.lastScan = out.Result.FinishedAt

	d.warnCritical(planPath, out.Result)
}

// warnCritical logs audits with critical findings. Only phantom work, a
// claimed deliverable that does not exist, raises the alert.
func (d *Daemon) warnCritical(planPath string, res *audit.Result) {
	critical := res.FindingCounts()[audit.SeverityCritical]
	if critical == 0 {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldPlan, planPath),
		logging.String(logging.FieldAuditID, res.ID),
		logging.Int("critical", critical),
		logging.Float64("percent", res.Summary.Percent),
		logging.String(logging.FieldErrorHint, "run `reconcile show "+res.ID+"` for details"),
	}
	if phantoms := res.CountKind(audit.FindingPhantom); phantoms > 0 {
		attrs = append(attrs,
			logging.Int("phantom", phantoms),
			logging.Alert("phantom_work"),
			logging.String(logging.FieldImpact, "claimed deliverables are missing from the workspace"),
		)
	} else {
		attrs = append(attrs, logging.String(logging.FieldImpact, "deliverables resolve outside the workspace root"))
	}
	logging.WarnWithContext(d.logger, "plan audit found critical findings", "audit_critical_findings", attrs...)
}

// scanTriggers inventories trigger folders when no plan audit would.
func (d *Daemon) scanTriggers(ctx context.Context) {
	inv, err := api.ScanTriggers(ctx, api.ScanTriggersRequest{Config: d.cfg, Logger: d.logger})
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(d.logger, "trigger inventory failed", "trigger_scan_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.triggers_dir"),
			)
		}
		return
	}
	d.mu.Lock()
	d.lastScan = inv.ScannedAt
	d.mu.Unlock()
	d.logger.Info("trigger inventory refreshed",
		logging.Int("agents", len(inv.Agents)),
		logging.Int("files", len(inv.Entries)),
		logging.Int("findings", len(inv.Findings)),
	)
}

// pruneHistory drops audits and events older than the report retention.
func (d *Daemon) pruneHistory(ctx context.Context) {
	days := d.cfg.Audit.ReportRetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	audits, err := d.store.DeleteAuditsBefore(ctx, cutoff)
	if err != nil {
		d.logger.Warn("audit history prune failed", logging.Error(err))
	}
	events, err := d.store.PruneEvents(ctx, cutoff)
	if err != nil {
		d.logger.Warn("event history prune failed", logging.Error(err))
	}
	if audits > 0 || events > 0 {
		d.logger.Info("history pruned",
			logging.Int64("audits", audits),
			logging.Int64("events", events),
		)
	}
}
