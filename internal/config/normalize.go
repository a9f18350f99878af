package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"reconcile/internal/trigger"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAgents()
	c.normalizeTriggers()
	if err := c.normalizeAudit(); err != nil {
		return err
	}
	c.normalizeDaemon()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceRoot) == "" {
		c.Paths.WorkspaceRoot = defaultWorkspaceRoot
	}
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return fmt.Errorf("paths.workspace_root: %w", err)
	}
	if c.Paths.TriggersDir, err = expandPath(c.Paths.TriggersDir); err != nil {
		return fmt.Errorf("paths.triggers_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("RECONCILE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeAgents() {
	if len(c.Agents.Names) == 0 {
		return
	}
	names := make([]string, 0, len(c.Agents.Names))
	for _, name := range c.Agents.Names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if slices.ContainsFunc(names, func(kept string) bool { return trigger.SameAgent(kept, trimmed) }) {
			continue
		}
		names = append(names, trimmed)
	}
	c.Agents.Names = names
}

func (c *Config) normalizeTriggers() {
	if c.Triggers.MaxBodyBytes == 0 {
		c.Triggers.MaxBodyBytes = defaultMaxBodyBytes
	}
}

func (c *Config) normalizeAudit() error {
	if c.Audit.ReportRetentionDays < 0 {
		c.Audit.ReportRetentionDays = 0
	}
	if len(c.Audit.Plans) == 0 {
		return nil
	}
	plans := make([]string, 0, len(c.Audit.Plans))
	seen := make(map[string]struct{}, len(c.Audit.Plans))
	for i, plan := range c.Audit.Plans {
		if strings.TrimSpace(plan) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(plan))
		if err != nil {
			return fmt.Errorf("audit.plans[%d]: %w", i, err)
		}
		if _, exists := seen[expanded]; exists {
			continue
		}
		seen[expanded] = struct{}{}
		plans = append(plans, expanded)
	}
	c.Audit.Plans = plans
	return nil
}

func (c *Config) normalizeDaemon() {
	if c.Daemon.DebounceMillis == 0 {
		c.Daemon.DebounceMillis = defaultDebounceMillis
	}
	if c.Daemon.RescanIntervalSeconds == 0 {
		c.Daemon.RescanIntervalSeconds = defaultRescanIntervalSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
