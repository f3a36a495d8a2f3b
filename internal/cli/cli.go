// Package cli implements the ossinventory command-line interface.
//
// # Commands
//
//   - fetch: resolve a package.json, download every dependency archive and
//     write oss-packages.csv into a fresh run directory
//   - inspect: print or browse an existing inventory
//   - cache: manage the optional metadata cache
//   - completion: generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// passed through context.Context; fetch adds a run key to it so concurrent
// dependency logs can be told apart from other runs.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ossinventory/pkg/buildinfo"
	"github.com/matzehuels/ossinventory/pkg/cache"
	"github.com/matzehuels/ossinventory/pkg/config"
	errs "github.com/matzehuels/ossinventory/pkg/errors"
)

// appName is the application name used for directories and display.
const appName = "ossinventory"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a CLI that logs to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "ossinventory builds an open-source inventory from an npm manifest",
		Long: `ossinventory reads the dependencies of a package.json, resolves each one
against the npm registry, downloads its tarball and writes an inventory of
package, version, source, license and homepage for compliance audits.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newCache builds the metadata cache selected by cfg. Caching is off unless
// enabled; a Redis address takes precedence over the file cache.
func newCache(ctx context.Context, cfg config.Cache) (cache.Cache, bool, error) {
	if !cfg.Enabled && cfg.Redis == "" {
		return cache.NewNullCache(), false, nil
	}
	if cfg.Redis != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.Redis})
		if err != nil {
			return nil, false, errs.Wrap(errs.ErrCodeInvalidConfig, err, "connect to redis at %s", cfg.Redis)
		}
		return rc, true, nil
	}
	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return nil, false, errs.Wrap(errs.ErrCodeInvalidConfig, err, "locate cache directory")
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrCodeInvalidConfig, err, "open cache")
	}
	return fc, true, nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/ossinventory/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
