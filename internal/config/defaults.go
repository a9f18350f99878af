package config

const (
	defaultWorkspaceRoot         = "."
	defaultTriggersDir           = "~/.local/share/reconcile/triggers"
	defaultReportDir             = "~/.local/share/reconcile/reports"
	defaultStateDir              = "~/.local/share/reconcile"
	defaultAPIBind               = "127.0.0.1:7488"
	defaultStaleAfterHours       = 72
	defaultMaxBodyBytes          = 1 << 20
	defaultReportRetentionDays   = 30
	defaultDebounceMillis        = 500
	defaultRescanIntervalSeconds = 300
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			TriggersDir:   defaultTriggersDir,
			ReportDir:     defaultReportDir,
			StateDir:      defaultStateDir,
			APIBind:       defaultAPIBind,
		},
		Triggers: Triggers{
			StaleAfterHours: defaultStaleAfterHours,
			MaxBodyBytes:    defaultMaxBodyBytes,
		},
		Audit: Audit{
			WriteReports:        true,
			ReportRetentionDays: defaultReportRetentionDays,
			CheckSymbols:        true,
		},
		Daemon: Daemon{
			DebounceMillis:        defaultDebounceMillis,
			RescanIntervalSeconds: defaultRescanIntervalSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
