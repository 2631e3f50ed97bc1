package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"resolve", "simulate", "progress", "analyze", "validate", "metric", "score", "model", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "gsa-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("metrics-file"))
}

func TestStudyCommands_Flags(t *testing.T) {
	for _, c := range []*struct {
		name  string
		flags []string
	}{
		{"resolve", []string{"study", "project", "database", "activity", "amount", "method", "iterations", "chunk-size", "seed"}},
		{"simulate", []string{"study", "force-unlock"}},
		{"score", []string{"study", "project", "activity", "method"}},
		{"progress", []string{"study", "run-dir"}},
		{"analyze", []string{"study", "run-dir", "xlsx"}},
		{"validate", []string{"run-dir", "min-influential", "max-influential", "step-influential", "validation-iterations", "xlsx", "force-unlock"}},
		{"metric", []string{"run-dir", "validation-iterations"}},
	} {
		cmd, _, err := rootCmd.Find([]string{c.name})
		require.NoError(t, err)
		for _, flagName := range c.flags {
			assert.NotNil(t, cmd.Flags().Lookup(flagName), "%s should have --%s flag", c.name, flagName)
		}
	}
}

func TestModelCommand_HasImport(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"model", "import"})
	require.NoError(t, err)
	assert.Equal(t, "import", cmd.Name())
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats", "reap"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}
