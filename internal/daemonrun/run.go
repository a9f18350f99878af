package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reconcile/internal/config"
	"reconcile/internal/daemon"
	"reconcile/internal/logging"
	"reconcile/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, is called once the daemon is serving.
	Ready func(*daemon.Daemon)
}

// Run starts the reconcile daemon and blocks until cmdCtx is cancelled or
// the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logDir := cfg.LogDir()
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(logDir, fmt.Sprintf("reconciled-%s.log", runID))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stderr", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open audit store", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration, the state directory, and api_bind"),
		)
		return err
	}

	// Only the instance holding the daemon lock may touch the shared PID
	// file and log pointer.
	if err := pointLatestLog(logDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.Prune(logger, cfg.Logging.RetentionDays, time.Now(),
		logging.RetentionTarget{Dir: logDir, Pattern: "reconciled-*.log", Exclude: []string{logPath}},
	)
	removePID, err := writePIDFile(PIDPath(cfg))
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer removePID()

	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("reconcile daemon shutting down")
	return nil
}

// PIDPath returns the file holding the running daemon's process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, "reconciled.pid")
}

// pointLatestLog makes reconcile.log in logDir refer to the current run's
// file. Filesystems without symlinks get a hard link instead.
func pointLatestLog(logDir, runLog string) error {
	if logDir == "" || runLog == "" {
		return nil
	}
	pointer := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(pointer); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", pointer, err)
	}
	symErr := os.Symlink(runLog, pointer)
	if symErr == nil {
		return nil
	}
	if err := os.Link(runLog, pointer); err != nil {
		return fmt.Errorf("point %s at %s: %w", pointer, runLog, errors.Join(symErr, err))
	}
	return nil
}

// writePIDFile records the daemon pid and returns a func that removes it.
func writePIDFile(path string) (func(), error) {
	if err := os.WriteFile(path, fmt.Appendf(nil, "%d\n", os.Getpid()), 0o644); err != nil {
		return nil, err
	}
	return func() { _ = os.Remove(path) }, nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	_, triggersErr := os.Stat(cfg.Paths.TriggersDir)
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("workspace_root", cfg.Paths.WorkspaceRoot),
		logging.String("triggers_dir", cfg.Paths.TriggersDir),
		logging.Bool("triggers_dir_present", triggersErr == nil),
		logging.Int("plans", len(cfg.Audit.Plans)),
		logging.Int("agents", len(cfg.Agents.Names)),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Bool("write_reports", cfg.Audit.WriteReports),
		logging.Duration("rescan_interval", cfg.RescanInterval()),
	)
}
