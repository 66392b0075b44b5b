package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/harrisonrobin/vaultsync/pkg/audit"
	"github.com/harrisonrobin/vaultsync/pkg/backup"
	"github.com/harrisonrobin/vaultsync/pkg/config"
	"github.com/harrisonrobin/vaultsync/pkg/engine"
	"github.com/harrisonrobin/vaultsync/pkg/google"
	"github.com/harrisonrobin/vaultsync/pkg/logging"
	"github.com/harrisonrobin/vaultsync/pkg/synclog"
	"github.com/harrisonrobin/vaultsync/pkg/taskwarrior"
	"github.com/harrisonrobin/vaultsync/pkg/vault"
)

// Files kept in the config directory.
const (
	stateFile   = "state.json"
	syncLogFile = "sync_log.json"
	auditFile   = "audit.log"
	backupDir   = "backups"
	lockFile    = "sync.lock"
)

// newDestination builds the configured destination. Tests replace it.
var newDestination = func(ctx context.Context, cfg *config.Config, dir string, log zerolog.Logger) (engine.TaskDestination, error) {
	switch cfg.Destination {
	case config.DestinationTaskwarrior:
		return taskwarrior.NewClient(taskwarrior.WithLogger(log)), nil
	default:
		return google.New(ctx, dir, google.WithLogger(log))
	}
}

// app is what every command works with.
type app struct {
	opts   *RootOptions
	dir    string
	cfg    *config.Config
	log    zerolog.Logger
	source *vault.Source
}

func newApp(opts *RootOptions, errOut io.Writer) (*app, error) {
	dir := opts.ConfigDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultDir(); err != nil {
			return nil, fmt.Errorf("could not find configuration directory: %w", err)
		}
	}

	cfg := config.Load(dir, logging.New(errOut, "warn", true))
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	log := logging.New(errOut, level, true)

	source := vault.New(vault.Options{
		Root:        cfg.VaultPath,
		FilePattern: cfg.FilePattern,
		Exclude:     cfg.ExcludedPaths,
		Backups:     backup.New(filepath.Join(dir, backupDir), cfg.Backup.MaxPerFile, cfg.Backup.MaxAge, backup.WithLogger(log)),
		Audit:       audit.New(filepath.Join(dir, auditFile), cfg.Audit.MaxBytes),
		Logger:      log.With().Str("component", "vault").Logger(),
	})
	return &app{opts: opts, dir: dir, cfg: cfg, log: log, source: source}, nil
}

func (a *app) path(name string) string { return filepath.Join(a.dir, name) }

func (a *app) requireVault() error {
	if a.cfg.VaultPath == "" {
		return fmt.Errorf("%w: vault_path is not set; run `vaultsync config set vault_path <dir>`", engine.ErrConfig)
	}
	return nil
}

func (a *app) syncLog() (*synclog.Log, error) {
	return synclog.Open(a.path(syncLogFile), a.cfg.Log.Capacity)
}

func (a *app) engine(ctx context.Context) (*engine.Engine, error) {
	dst, err := newDestination(ctx, a.cfg, a.dir, a.log.With().Str("component", a.cfg.Destination).Logger())
	if err != nil {
		return nil, err
	}
	recorder, err := a.syncLog()
	if err != nil {
		return nil, err
	}
	return engine.New(a.source, dst, engine.Options{
		StoreRoot:        a.cfg.VaultPath,
		SentinelDir:      a.cfg.SentinelDir,
		StatePath:        a.path(stateFile),
		Router:           engine.Router{TagLists: a.cfg.TagListMapping, DefaultList: a.cfg.DefaultList},
		Writeback:        a.cfg.CompletionWriteback,
		DryRun:           a.cfg.DryRun,
		IncludeCompleted: a.cfg.IncludeCompleted,
		Guard:            engine.NewFileGuard(a.path(lockFile)),
		Recorder:         recorder,
		Logger:           a.log.With().Str("component", "engine").Logger(),
	}), nil
}

func (a *app) json() bool { return a.opts.Format == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
