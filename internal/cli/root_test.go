package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "filterc", cmd.Use)
	assert.Contains(t, cmd.Long, "check that both agree")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"sql", "match", "check", "convert"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestFilterFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"sql", "match", "check", "convert"} {
		subCmd, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		filterFlag := subCmd.Flags().Lookup("filter")
		require.NotNil(t, filterFlag, name)
		assert.Equal(t, "f", filterFlag.Shorthand)
		assert.NotNil(t, subCmd.Flags().Lookup("cel"), name)
		assert.NotNil(t, subCmd.Flags().Lookup("filter-file"), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "convert", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeFile(t, "filterc.yaml", "fields:\n  name:\n    kind: column\n")

	_, err := execute(t, "convert", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "column is required")
}

func TestExclusiveFilterFlags(t *testing.T) {
	_, err := execute(t, "convert", "-f", "{}", "--cel", "true")
	require.Error(t, err)
}
