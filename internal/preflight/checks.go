package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"reconcile/internal/config"
	"reconcile/internal/plan"
	"reconcile/internal/store"
)

// Access selects the permissions CheckDirectoryAccess requires.
type Access int

const (
	// AccessRead requires list and traverse permission.
	AccessRead Access = iota
	// AccessReadWrite additionally requires write permission.
	AccessReadWrite
)

func (a Access) mode() uint32 {
	if a == AccessReadWrite {
		return unix.R_OK | unix.W_OK | unix.X_OK
	}
	return unix.R_OK | unix.X_OK
}

func (a Access) String() string {
	if a == AccessReadWrite {
		return "read/write"
	}
	return "read"
}

// CheckDirectoryAccess verifies that the directory exists with the requested access.
func CheckDirectoryAccess(name, path string, access Access) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, access.mode()); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s ok)", path, access)}
}

// CheckCreatable passes when path is a writable directory, or when it is
// missing and its nearest existing ancestor is writable.
func CheckCreatable(name, path string) Result {
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path, AccessReadWrite)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first use)", path)}
}

// CheckPlan verifies that a plan file parses and lists deliverables.
func CheckPlan(path string) Result {
	name := "Plan " + filepath.Base(path)
	p, err := plan.Parse(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if len(p.Deliverables) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no deliverables found)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d deliverables)", path, len(p.Deliverables))}
}

// CheckDatabase opens the audit database and reports its health. A database
// that has not been created yet passes.
func CheckDatabase(ctx context.Context, cfg *config.Config) (Result, *store.DatabaseHealth) {
	const name = "Audit database"

	path := cfg.DatabasePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}, nil
	}

	st, err := store.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}, nil
	}
	defer st.Close()

	health, err := st.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}, &health
	}
	if len(health.MissingTables) > 0 || !health.IntegrityCheck {
		return Result{Name: name, Detail: fmt.Sprintf("%s (unhealthy: missing tables %v, integrity ok %t)", path, health.MissingTables, health.IntegrityCheck)}, &health
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d audits, %d events)", path, health.TotalAudits, health.TotalEvents)}, &health
}

// DaemonRunning probes the daemon's lock file. The probe never creates the
// lock file's directory.
func DaemonRunning(cfg *config.Config) (bool, error) {
	path := cfg.LockPath()
	if _, err := os.Stat(filepath.Dir(path)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if locked {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

// CheckDaemon reports whether the daemon holds its lock. A stopped daemon is
// informational, not a failure.
func CheckDaemon(cfg *config.Config) Result {
	const name = "Daemon"

	running, err := DaemonRunning(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !running {
		return Result{Name: name, Passed: true, Detail: "not running"}
	}
	detail := "running"
	if cfg.Paths.APIBind != "" {
		detail = fmt.Sprintf("running (api http://%s/api)", cfg.Paths.APIBind)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
