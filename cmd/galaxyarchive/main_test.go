package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandWiresExpectedSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"download", "validate", "extract", "list", "sync-metadata"} {
		require.True(t, names[want], "expected RootCmd to have a %q subcommand", want)
	}
}

func TestDownloadSubcommandsRequireExpectedArgCounts(t *testing.T) {
	require.NoError(t, downloadBuildCmd.Args(downloadBuildCmd, []string{"p1", "b1"}))
	require.Error(t, downloadBuildCmd.Args(downloadBuildCmd, []string{"p1"}))

	require.NoError(t, downloadRepositoryCmd.Args(downloadRepositoryCmd, []string{"p1", "r1"}))
	require.Error(t, downloadRepositoryCmd.Args(downloadRepositoryCmd, []string{"p1", "r1", "extra"}))

	require.NoError(t, downloadProductCmd.Args(downloadProductCmd, []string{"p1"}))
	require.Error(t, downloadProductCmd.Args(downloadProductCmd, []string{}))
}

func TestValidateGen1RequiresProductAndRepositoryFlags(t *testing.T) {
	cmd := validateGen1Cmd
	require.NoError(t, cmd.Args(cmd, []string{"d1.manifest"}))
	require.Error(t, cmd.Args(cmd, []string{}))

	// Neither --product nor --repository has been set on this command's
	// flag set yet, so cobra's required-flag validation must reject it.
	require.Error(t, cmd.ValidateRequiredFlags())

	require.NoError(t, cmd.Flags().Set("product", "p1"))
	require.NoError(t, cmd.Flags().Set("repository", "r1"))
	require.NoError(t, cmd.ValidateRequiredFlags())
}

func TestDefaultLogFormatIsRejectedWhenMisspelled(t *testing.T) {
	saved := globalFlags.logFormat
	defer func() { globalFlags.logFormat = saved }()

	globalFlags.logFormat = "yaml"
	require.Error(t, configureLogging())

	globalFlags.logFormat = "json"
	require.NoError(t, configureLogging())
}

func TestWireStoreAppliesDefaultConfigurationWhenNoConfigFlagGiven(t *testing.T) {
	saved := globalFlags.configPath
	defer func() { globalFlags.configPath = saved }()
	globalFlags.configPath = ""

	_, _, _, cfg, err := wireStore()
	require.NoError(t, err)
	require.NotZero(t, cfg.Download.MaxWorkers)
}
