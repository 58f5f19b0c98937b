package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/sncbound/internal/store"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	var traceDir string

	openStore := func(cmd *cobra.Command) (store.Store, error) {
		dir := root.cfg.TraceDir
		if cmd.Flags().Changed("trace-dir") {
			dir = traceDir
		}
		if dir == "" {
			return nil, fmt.Errorf("no trace directory: set --trace-dir or trace_dir in the config")
		}
		return store.NewFSStore(dir)
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage recorded runs",
		Long:  `List, inspect, delete and clean the runs recorded in the trace directory.`,
	}
	cmd.PersistentFlags().StringVar(&traceDir, "trace-dir", "", "Directory for run records and traces (overrides config)")

	cmd.AddCommand(
		newRunsListCmd(openStore),
		newRunsShowCmd(openStore),
		newRunsDeleteCmd(openStore),
		newRunsCleanCmd(openStore),
	)
	return cmd
}

type storeOpener func(cmd *cobra.Command) (store.Store, error)

func newRunsListCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			infos, err := st.ListRuns()
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tTIMESTAMP\tMODEL\tMODE\tCOST\tSIZE")
			for _, info := range infos {
				mode := info.Mode
				if info.BoundType != "" {
					mode += "/" + info.BoundType
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%s\n",
					info.RunID,
					info.Timestamp.Format("2006-01-02 15:04:05"),
					info.Model,
					mode,
					float64(info.Cost),
					formatBytes(info.Size),
				)
			}
			w.Flush()

			fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
			return nil
		},
	}
}

func newRunsShowCmd(open storeOpener) *cobra.Command {
	var withTrace bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the record of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			rec, err := st.LoadRun(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rec); err != nil {
				return err
			}
			if !withTrace {
				return nil
			}
			entries, err := st.LoadTrace(rec.RunID)
			if err != nil {
				return err
			}
			return printTrace(out, entries)
		},
	}
	cmd.Flags().BoolVar(&withTrace, "trace", false, "Also print the committed search steps")
	return cmd
}

func printTrace(w io.Writer, entries []store.TraceEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ITER\tCHANGE\tHOELDER\tTHETA\tCOST")
	for _, e := range entries {
		hoelder := "-"
		if e.Hoelder != 0 {
			hoelder = fmt.Sprint(e.Hoelder)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%g\n", e.Iteration, e.Change, hoelder, e.Theta, float64(e.Cost))
	}
	return tw.Flush()
}

func newRunsDeleteCmd(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run and its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd)
			if err != nil {
				return err
			}
			if err := st.DeleteRun(args[0]); err != nil {
				return err
			}
			slog.Info("Deleted run", "run_id", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newRunsCleanCmd(open storeOpener) *cobra.Command {
	var (
		keepLast      int
		olderThanDays int
		force         bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete old runs",
		Long: `Delete recorded runs by retention policy: keep only the newest N runs,
or drop runs older than N days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keepLast == 0 && olderThanDays == 0 {
				return fmt.Errorf("must specify either --keep-last or --older-than")
			}
			st, err := open(cmd)
			if err != nil {
				return err
			}
			infos, err := st.ListRuns()
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
			if len(toDelete) == 0 {
				fmt.Fprintln(out, "No runs match deletion criteria.")
				return nil
			}

			fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
			for _, info := range toDelete {
				fmt.Fprintf(out, "  - %s (%s, %s)\n", info.RunID, info.Model, info.Timestamp.Format("2006-01-02 15:04:05"))
			}

			if !force {
				fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
				var response string
				fmt.Fscanln(cmd.InOrStdin(), &response)
				if !strings.EqualFold(response, "y") {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			deleted, failed := 0, 0
			for _, info := range toDelete {
				if err := st.DeleteRun(info.RunID); err != nil {
					slog.Error("Failed to delete run", "run_id", info.RunID, "error", err)
					failed++
					continue
				}
				slog.Info("Deleted run", "run_id", info.RunID)
				deleted++
			}

			fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

// selectRunsForDeletion applies the retention policy. A run matching both
// rules is listed once.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	var toDelete []store.RunInfo
	selected := make(map[string]bool)

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
