package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/config"
)

var (
	cfg      *config.Config
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "listing-recon",
	Short: "Multi-source property listing reconciliation",
	Long: `Compares each CRM property against the same listing on the configured
portals and reports per-field consistency.

  feed sync     import agencies and properties from the CRM XML feed
  compare       reconcile one stored property and print the report
  audit         reconcile many properties, export XLSX, push to Salesforce
  runs          browse saved comparison runs
  sources       show source adapters and circuit breaker state
  serve         HTTP API for the dashboard, with optional alerting`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
