package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/crm"
	"github.com/sells-group/listing-recon/internal/fetcher"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Primary CRM feed operations",
}

var feedSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the CRM XML feed and upsert agencies and listings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		feedURL, _ := cmd.Flags().GetString("url")
		if feedURL == "" {
			feedURL = cfg.Feed.URL
		}
		if feedURL == "" {
			return eris.New("feed url is required (--url or RECON_FEED_URL)")
		}

		f, err := fetcher.For(feedURL, fetcher.Options{
			Credentials: fetcher.Credentials{Username: cfg.Feed.Username, Password: cfg.Feed.Password},
			Timeout:     time.Duration(cfg.Feed.TimeoutSecs) * time.Second,
			UserAgent:   "listing-recon",
		})
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		start := time.Now()
		res, err := crm.NewSyncer(f, st).Sync(ctx, feedURL)
		if err != nil {
			return eris.Wrap(err, "feed sync")
		}
		zap.L().Info("feed sync complete",
			zap.Int("agencies", res.Agencies),
			zap.Int("properties", res.Properties),
			zap.Int("skipped", res.Skipped),
			zap.Duration("took", time.Since(start)),
		)

		return json.NewEncoder(os.Stdout).Encode(res)
	},
}

func init() {
	feedSyncCmd.Flags().String("url", "", "feed location: http(s)://, ftp:// or a local path (default from config)")
	feedCmd.AddCommand(feedSyncCmd)
	rootCmd.AddCommand(feedCmd)
}
