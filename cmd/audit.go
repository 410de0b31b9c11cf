package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/listing-recon/internal/audit"
	"github.com/sells-group/listing-recon/internal/store"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Reconcile stored properties in bulk and summarise consistency",
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		agency, _ := cmd.Flags().GetString("agency")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		exportPath, _ := cmd.Flags().GetString("export")
		push, _ := cmd.Flags().GetBool("push-salesforce")

		if concurrency <= 0 {
			concurrency = cfg.Audit.MaxConcurrent
		}
		if exportPath == "" {
			exportPath = cfg.Audit.ExportPath
		}

		opts := []audit.Option{audit.WithConcurrency(concurrency)}
		if exportPath != "" {
			opts = append(opts, audit.WithExport(exportPath))
		}
		if eng.metrics != nil {
			opts = append(opts, audit.WithRecorder(eng.metrics))
		}
		if push || cfg.Audit.PushSalesforce {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			opts = append(opts, audit.WithSalesforce(sf, cfg.Audit.SalesforceObject, cfg.Audit.BatchSize))
		}

		job := audit.NewJob(eng.comparer, st, opts...)
		sum, err := job.Run(ctx, store.PropertyFilter{
			AgencyID: agency,
			Status:   status,
			Limit:    limit,
		})
		if sum != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(sum); encErr != nil && err == nil {
				err = encErr
			}
		}
		return err
	},
}

func init() {
	auditCmd.Flags().String("agency", "", "only audit properties of this agency")
	auditCmd.Flags().String("status", "", "only audit properties with this status (e.g. active)")
	auditCmd.Flags().Int("limit", 0, "max properties to audit (0 = all)")
	auditCmd.Flags().Int("concurrency", 0, "properties compared in parallel (default from config)")
	auditCmd.Flags().String("export", "", "write an XLSX workbook of the results to this path")
	auditCmd.Flags().Bool("push-salesforce", false, "push one audit record per property to Salesforce")
	rootCmd.AddCommand(auditCmd)
}
