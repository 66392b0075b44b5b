package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/vaultsync/pkg/export"
	"github.com/harrisonrobin/vaultsync/pkg/model"
)

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		due, start, scheduled, priority, file string
		tags                                  []string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a new task to a vault file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.requireVault(); err != nil {
				return err
			}

			t := model.Task{Title: strings.TrimSpace(args[0]), Tags: tags}
			if t.Due, err = dateFlag("due", due); err != nil {
				return err
			}
			if t.Start, err = dateFlag("start", start); err != nil {
				return err
			}
			if t.Scheduled, err = dateFlag("scheduled", scheduled); err != nil {
				return err
			}
			if t.Priority, err = model.ParsePriority(priority); err != nil {
				return err
			}
			if file == "" {
				file = a.cfg.NewTaskFile
			}

			origin, err := a.source.AppendNewTask(file, t)
			if err != nil {
				return err
			}
			t.Origin = origin
			id := a.source.GenerateTaskID(t)
			if a.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"id":   id,
					"file": origin.File,
					"line": origin.Line,
					"text": origin.Text,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s:%d\n  %s\n", origin.File, origin.Line, origin.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "scheduled date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "priority (low|medium|high)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag, without '#' (repeatable)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "vault file to append to (default new_task_file)")
	return cmd
}

func dateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &d, nil
}

func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		due, start, scheduled, priority string
		clearDue, clearStart            bool
		clearScheduled, clearPriority   bool
	)
	cmd := &cobra.Command{
		Use:   "edit <task-id>",
		Short: "Change the dates or priority of a vault task in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.requireVault(); err != nil {
				return err
			}

			var ch model.MetadataChanges
			if ch.Due, err = dateChange("due", due, clearDue); err != nil {
				return err
			}
			if ch.Start, err = dateChange("start", start, clearStart); err != nil {
				return err
			}
			if ch.Scheduled, err = dateChange("scheduled", scheduled, clearScheduled); err != nil {
				return err
			}
			if ch.Priority, err = priorityChange(priority, clearPriority); err != nil {
				return err
			}
			if ch.Empty() {
				return errors.New("nothing to change; pass at least one of --due, --start, --scheduled, --priority or a --clear-* flag")
			}

			tasks, err := a.source.ScanTasks(contextOf(cmd))
			if err != nil {
				return err
			}
			for _, t := range tasks {
				if a.source.GenerateTaskID(t) != args[0] {
					continue
				}
				if err := a.source.UpdateTaskMetadata(t, ch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s:%d\n", t.Origin.File, t.Origin.Line)
				return nil
			}
			return fmt.Errorf("no task with id %s in the vault", args[0])
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "new start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&scheduled, "scheduled", "", "new scheduled date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority (none|low|medium|high)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().BoolVar(&clearStart, "clear-start", false, "remove the start date")
	cmd.Flags().BoolVar(&clearScheduled, "clear-scheduled", false, "remove the scheduled date")
	cmd.Flags().BoolVar(&clearPriority, "clear-priority", false, "remove the priority")
	return cmd
}

func dateChange(name, value string, clear bool) (model.Change[time.Time], error) {
	switch {
	case value != "" && clear:
		return model.Unchanged[time.Time](), fmt.Errorf("--%s and --clear-%s are mutually exclusive", name, name)
	case clear:
		return model.Cleared[time.Time](), nil
	case value == "":
		return model.Unchanged[time.Time](), nil
	}
	d, err := model.ParseDate(value)
	if err != nil {
		return model.Unchanged[time.Time](), fmt.Errorf("--%s: %w", name, err)
	}
	return model.SetTo(d), nil
}

func priorityChange(value string, clear bool) (model.Change[model.Priority], error) {
	if value != "" && clear {
		return model.Unchanged[model.Priority](), errors.New("--priority and --clear-priority are mutually exclusive")
	}
	if clear {
		return model.Cleared[model.Priority](), nil
	}
	if value == "" {
		return model.Unchanged[model.Priority](), nil
	}
	p, err := model.ParsePriority(value)
	if err != nil {
		return model.Unchanged[model.Priority](), fmt.Errorf("--priority: %w", err)
	}
	if p == model.PriorityNone {
		return model.Cleared[model.Priority](), nil
	}
	return model.SetTo(p), nil
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every vault task as normalized markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := a.requireVault(); err != nil {
				return err
			}
			tasks, err := a.source.ScanTasks(contextOf(cmd))
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return export.Write(cmd.OutOrStdout(), tasks)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("could not create %s: %w", output, err)
			}
			if err := export.Write(f, tasks); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
