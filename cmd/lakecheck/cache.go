package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the generated-SQL cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			store, err := app.requireStore()
			if err != nil {
				return err
			}

			stats := store.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Entries\t%d / %d\n", stats.Entries, stats.MaxEntries)
			fmt.Fprintf(w, "TTL\t%s\n", stats.TTL)
			fmt.Fprintf(w, "Hits\t%d\n", stats.Hits)
			fmt.Fprintf(w, "Misses\t%d\n", stats.Misses)
			fmt.Fprintf(w, "Hit rate\t%.1f%%\n", stats.HitRatePercent)
			fmt.Fprintf(w, "Saves\t%d\n", stats.Saves)
			fmt.Fprintf(w, "Evictions\t%d\n", stats.Evictions)
			fmt.Fprintf(w, "Size\t%.2f MB\n", float64(stats.SizeBytes)/(1024*1024))
			if !stats.LastCleanup.IsZero() {
				fmt.Fprintf(w, "Last cleanup\t%s\n", stats.LastCleanup.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	var confirm bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached SQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				fmt.Fprint(cmd.OutOrStdout(), "Clear all cached SQL? [y/N] ")
				var answer string
				_, _ = fmt.Fscanln(os.Stdin, &answer)
				if answer != "y" && answer != "Y" {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			store, err := app.requireStore()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries.\n", store.Clear())
			return nil
		},
	}
	clearCmd.Flags().BoolVarP(&confirm, "yes", "y", false, "skip the confirmation prompt")

	var limit int
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently used cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts)
			if err != nil {
				return err
			}
			defer app.Close()

			store, err := app.requireStore()
			if err != nil {
				return err
			}

			entries := store.ListRecent(limit)
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "The cache is empty.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLES\tREQUEST\tAGE\tHITS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%.1fh\t%d\n",
					e.Tables, truncate(e.ValidationRequest, 60), e.AgeHours, e.AccessCount)
			}
			return w.Flush()
		},
	}
	recentCmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to list")

	cmd.AddCommand(statsCmd, clearCmd, recentCmd)
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
