package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/compare"
	"github.com/sells-group/listing-recon/internal/model"
)

var compareCmd = &cobra.Command{
	Use:   "compare <property-id>",
	Short: "Reconcile one stored property against every source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		prop, err := st.GetProperty(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "compare: load property")
		}

		pc, err := eng.comparer.Compare(ctx, *prop)
		if err != nil {
			return eris.Wrap(err, "compare")
		}

		noSave, _ := cmd.Flags().GetBool("no-save")
		if !noSave {
			run, err := st.SaveComparison(ctx, pc)
			if err != nil {
				return eris.Wrap(err, "compare: save run")
			}
			zap.L().Info("comparison saved",
				zap.String("run_id", run.ID),
				zap.Int("consistency", run.OverallConsistency),
			)
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pc)
		}
		formatComparison(os.Stdout, pc)
		return nil
	},
}

func init() {
	compareCmd.Flags().Bool("json", false, "print the full comparison as JSON")
	compareCmd.Flags().Bool("no-save", false, "do not record the run in the store")
	rootCmd.AddCommand(compareCmd)
}

// formatComparison writes a human readable report of pc to out.
func formatComparison(out io.Writer, pc *model.PropertyComparison) {
	_, _ = fmt.Fprintf(out, "%s  %s\n", pc.Property.ID, pc.Property.FullAddress())
	_, _ = fmt.Fprintf(out, "Overall consistency: %d%% (%s)\n\n", pc.OverallConsistency, compare.Band(pc.OverallConsistency))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprint(w, "FIELD\tCONFIDENCE")
	for _, si := range pc.Sources {
		_, _ = fmt.Fprintf(w, "\t%s", si.Label)
	}
	_, _ = fmt.Fprintln(w)
	for _, f := range pc.Fields {
		flag := ""
		if f.SignificantDifference {
			flag = " !"
		}
		_, _ = fmt.Fprintf(w, "%s%s\t%d%%", f.Label, flag, f.ConfidenceScore)
		for _, si := range pc.Sources {
			v := f.Sources[si.Name]
			if v == nil {
				_, _ = fmt.Fprintf(w, "\t%s", compare.Missing)
				continue
			}
			_, _ = fmt.Fprintf(w, "\t%s", v.Display)
		}
		_, _ = fmt.Fprintln(w)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintln(out)
	for _, si := range pc.Sources {
		line := fmt.Sprintf("  %-12s %s", si.Label, si.Status)
		if si.Error != "" {
			line += ": " + si.Error
		}
		_, _ = fmt.Fprintln(out, line)
	}
	if len(pc.CriticalIssues) > 0 {
		_, _ = fmt.Fprintln(out, "\nCritical issues:")
		for _, issue := range pc.CriticalIssues {
			_, _ = fmt.Fprintf(out, "  - %s\n", issue)
		}
	}
	if len(pc.Suggestions) > 0 {
		_, _ = fmt.Fprintln(out, "\nSuggestions:")
		for _, s := range pc.Suggestions {
			_, _ = fmt.Fprintf(out, "  - %s\n", s)
		}
	}
}
