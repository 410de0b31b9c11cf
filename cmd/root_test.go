package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"compare", "audit", "feed", "sources", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "listing-recon", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.Contains(t, rootCmd.Long, "feed sync")
	assert.Contains(t, rootCmd.Long, "audit")
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestRootCommand_LogLevelOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	prevCfg, prevLevel := cfg, logLevel
	t.Cleanup(func() { cfg, logLevel = prevCfg, prevLevel })

	logLevel = "debug"
	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, "debug", cfg.Log.Level)

	logLevel = "loud"
	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init logger")
}

func TestCompareCommand_Flags(t *testing.T) {
	for _, name := range []string{"json", "no-save"} {
		assert.NotNil(t, compareCmd.Flags().Lookup(name), "compare should have --%s", name)
	}
	assert.Error(t, compareCmd.Args(compareCmd, nil))
	assert.NoError(t, compareCmd.Args(compareCmd, []string{"P1"}))
}

func TestAuditCommand_Flags(t *testing.T) {
	for _, name := range []string{"agency", "status", "limit", "concurrency", "export", "push-salesforce"} {
		assert.NotNil(t, auditCmd.Flags().Lookup(name), "audit should have --%s", name)
	}
	flag := auditCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestFeedCommand_HasSync(t *testing.T) {
	var found bool
	for _, c := range feedCmd.Commands() {
		if c.Name() == "sync" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotNil(t, feedSyncCmd.Flags().Lookup("url"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}
