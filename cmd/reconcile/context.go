package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reconcile/internal/config"
	"reconcile/internal/logging"
	"reconcile/internal/store"
)

// Commands that never read the configuration carry this annotation.
const skipConfigAnnotation = "skipConfigLoad"

// configSource records where the effective configuration came from.
type configSource struct {
	cfg  *config.Config
	path string
	// fromFile is false when path did not exist and defaults were used.
	fromFile bool
}

// commandContext is shared by every subcommand of one invocation. The
// configuration is loaded at most once, on first use.
type commandContext struct {
	load func() (configSource, error)
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		load: sync.OnceValues(func() (configSource, error) {
			var requested string
			if configFlag != nil {
				requested = strings.TrimSpace(*configFlag)
			}
			cfg, path, fromFile, err := config.Load(requested)
			if err != nil {
				return configSource{}, err
			}
			return configSource{cfg: cfg, path: path, fromFile: fromFile}, nil
		}),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	src, err := c.load()
	return src.cfg, err
}

func (c *commandContext) source() configSource {
	src, _ := c.load()
	return src
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// logger writes to stderr only; stdout is reserved for tables and JSON.
func (c *commandContext) logger() *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	if logger, err := logging.NewFromConfig(cfg, false); err == nil {
		return logger
	}
	return logging.NewNop()
}

func skipsConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
