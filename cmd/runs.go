package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored comparison runs",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List comparison runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		property, _ := cmd.Flags().GetString("property")
		maxConsistency, _ := cmd.Flags().GetInt("max-consistency")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.ComparisonFilter{
			PropertyID:     property,
			MaxConsistency: maxConsistency,
			Limit:          limit,
		}
		if since > 0 {
			filter.Since = time.Now().Add(-since)
		}

		runs, err := st.ListComparisons(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full comparison stored with a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetComparison(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runsListCmd.Flags().String("property", "", "filter by property id")
	runsListCmd.Flags().Int("max-consistency", 0, "only runs at or below this consistency (0 = any)")
	runsListCmd.Flags().Duration("since", 0, "only runs newer than this (e.g. 24h)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []model.ComparisonRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROPERTY\tCONSISTENCY\tBAND\tISSUES\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t-----------\t----\t------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%d\t%s\n",
			truncateID(r.ID),
			r.PropertyID,
			r.OverallConsistency,
			compare.Band(r.OverallConsistency),
			r.CriticalIssues,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
