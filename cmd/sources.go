package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/listing-recon/internal/fieldmap"
	"github.com/sells-group/listing-recon/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and their adapter state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		table, err := loadTable(cfg)
		if err != nil {
			return err
		}
		reg, err := source.Build(table, cfg.Sources)
		if err != nil {
			return err
		}
		formatSources(os.Stdout, table, reg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

type sourceRow struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Primary bool   `json:"primary"`
	Adapter string `json:"adapter"`
	Breaker string `json:"breaker,omitempty"`
}

// sourceRows describes each table source as the orchestrator sees it.
func sourceRows(table *fieldmap.Table, reg *source.Registry) []sourceRow {
	rows := make([]sourceRow, 0, len(table.Sources))
	for _, src := range table.Sources {
		row := sourceRow{Name: src.Name, Label: src.Label, Primary: src.Primary}
		switch a := reg.Get(src.Name); {
		case src.Primary:
			row.Adapter = "crm feed"
		case a == nil:
			row.Adapter = "not configured"
		default:
			row.Adapter = fmt.Sprintf("%T", a)
			if bs, ok := a.(source.BreakerStater); ok {
				row.Breaker = bs.BreakerState()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func formatSources(out io.Writer, table *fieldmap.Table, reg *source.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tLABEL\tPRIMARY\tADAPTER\tBREAKER")
	for _, r := range sourceRows(table, reg) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", r.Name, r.Label, r.Primary, r.Adapter, r.Breaker)
	}
	_ = w.Flush()
}
