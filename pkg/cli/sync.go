package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/vaultsync/pkg/engine"
	"github.com/harrisonrobin/vaultsync/pkg/trigger"
	"github.com/harrisonrobin/vaultsync/pkg/ui"
)

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass",
		Long: `Run one sync pass: push new and changed vault tasks to the destination,
delete destination tasks whose vault line is gone and, when
completion_writeback is on, copy completion state back into the vault.

With --dry-run every decision is reported but neither store is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.requireVault(); err != nil {
				return err
			}
			eng, err := a.engine(contextOf(cmd))
			if err != nil {
				return err
			}
			res, err := eng.Run(contextOf(cmd), engine.RunOptions{DryRun: dryRun, Trigger: "manual"})
			if res != nil {
				if a.json() {
					if jerr := writeJSON(cmd.OutOrStdout(), res); jerr != nil {
						return jerr
					}
				} else {
					ui.WriteResult(cmd.OutOrStdout(), res, rootOpts.Verbose)
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report actions without changing anything")
	return cmd
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync on start, on an interval and when vault files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.requireVault(); err != nil {
				return err
			}
			eng, err := a.engine(contextOf(cmd))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s := trigger.New(eng, trigger.Options{
				Interval:    a.cfg.SyncInterval,
				Root:        a.cfg.VaultPath,
				FilePattern: a.cfg.FilePattern,
				Debounce:    a.cfg.WatchDebounce,
				Changes:     a.source,
				OnStart:     true,
				DryRun:      dryRun,
				Logger:      a.log.With().Str("component", "trigger").Logger(),
				OnResult: func(res *engine.Result, err error) {
					if res != nil {
						ui.WriteResult(out, res, rootOpts.Verbose)
						return
					}
					if err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), ui.RenderFail(ui.IconFail+" "+err.Error()))
					}
				},
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s every %s (Ctrl+C to stop)\n", a.cfg.VaultPath, a.cfg.SyncInterval)
			return s.Start(ctx)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report actions without changing anything")
	return cmd
}

// contextOf falls back to Background when the command runs without one.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
