package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/vaultsync/pkg/auth"
	"github.com/harrisonrobin/vaultsync/pkg/config"
	"github.com/harrisonrobin/vaultsync/pkg/engine"
	"github.com/harrisonrobin/vaultsync/pkg/state"
	"github.com/harrisonrobin/vaultsync/pkg/ui"
	"github.com/harrisonrobin/vaultsync/pkg/vault"
)

type statusReport struct {
	ConfigDir   string         `json:"config_dir"`
	Vault       string         `json:"vault"`
	VaultOK     bool           `json:"vault_ok"`
	Destination string         `json:"destination"`
	Authorized  bool           `json:"authorized"`
	Mappings    int            `json:"mappings"`
	LastSync    *time.Time     `json:"last_sync,omitempty"`
	LastResult  *engine.Result `json:"last_result,omitempty"`
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [task-id]",
		Short: "Show sync status, or decode a task ID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return describeID(cmd, a, args[0])
			}

			rep := statusReport{
				ConfigDir:   a.dir,
				Vault:       a.cfg.VaultPath,
				VaultOK:     vaultOK(a.cfg),
				Destination: a.cfg.Destination,
				Authorized:  a.cfg.Destination != config.DestinationGoogle || auth.HasToken(a.dir),
			}
			st, err := state.Load(a.path(stateFile), vault.IDVersion)
			if err != nil {
				return err
			}
			rep.Mappings = st.Len()
			if !st.LastSync.IsZero() {
				rep.LastSync = &st.LastSync
			}
			logs, err := a.syncLog()
			if err != nil {
				return err
			}
			rep.LastResult = logs.Last()

			if a.json() {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			writeStatus(cmd, rep)
			return nil
		},
	}
	return cmd
}

func vaultOK(cfg *config.Config) bool {
	if cfg.VaultPath == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(cfg.VaultPath, cfg.SentinelDir))
	return err == nil && info.IsDir()
}

func writeStatus(cmd *cobra.Command, rep statusReport) {
	out := cmd.OutOrStdout()
	check := func(ok bool, good, bad string) string {
		if ok {
			return ui.RenderPass(ui.IconPass + " " + good)
		}
		return ui.RenderWarn(ui.IconWarn + " " + bad)
	}

	vaultPath := rep.Vault
	if vaultPath == "" {
		vaultPath = "(not set)"
	}
	fmt.Fprintf(out, "Config:       %s\n", rep.ConfigDir)
	fmt.Fprintf(out, "Vault:        %s %s\n", vaultPath, check(rep.VaultOK, "ok", "not a vault"))
	fmt.Fprintf(out, "Destination:  %s %s\n", rep.Destination, check(rep.Authorized, "authorized", "run `vaultsync auth`"))
	fmt.Fprintf(out, "Mappings:     %d\n", rep.Mappings)
	if rep.LastSync != nil {
		fmt.Fprintf(out, "Last sync:    %s\n", rep.LastSync.Local().Format(time.DateTime))
	} else {
		fmt.Fprintf(out, "Last sync:    %s\n", ui.RenderMuted("never"))
	}
	if rep.LastResult != nil {
		fmt.Fprint(out, "Last run:     ")
		ui.WriteResult(out, rep.LastResult, false)
	}
}

func describeID(cmd *cobra.Command, a *app, id string) error {
	fields, err := vault.DescribeTaskID(id)
	if err != nil {
		return err
	}
	if a.json() {
		return writeJSON(cmd.OutOrStdout(), fields)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File:       %s\n", fields.File)
	fmt.Fprintf(out, "Title:      %s\n", fields.Title)
	fmt.Fprintf(out, "Due:        %s\n", orDash(fields.Due))
	fmt.Fprintf(out, "Start:      %s\n", orDash(fields.Start))
	fmt.Fprintf(out, "Scheduled:  %s\n", orDash(fields.Scheduled))
	fmt.Fprintf(out, "Priority:   %s\n", fields.Priority)
	fmt.Fprintf(out, "Tags:       %s\n", orDash(strings.Join(fields.Tags, ", ")))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent sync results, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logs, err := a.syncLog()
			if err != nil {
				return err
			}
			recent := logs.Recent(limit)
			if a.json() {
				return writeJSON(cmd.OutOrStdout(), recent)
			}
			if len(recent) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sync runs recorded yet.")
				return nil
			}
			for _, res := range recent {
				ui.WriteResult(cmd.OutOrStdout(), res, rootOpts.Verbose)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}
