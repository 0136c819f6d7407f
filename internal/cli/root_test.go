package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "strata", cmd.Use)
	assert.Contains(t, cmd.Long, "canonical")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"ingest", "materialize", "unify", "drift", "mappings"}

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

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestDriftSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"list", "approve", "reject", "sweep"} {
		subCmd, _, err := cmd.Find([]string{"drift", name})
		require.NoError(t, err)
		assert.Equal(t, name, subCmd.Name())
	}

	listCmd, _, err := cmd.Find([]string{"drift", "list"})
	require.NoError(t, err)
	require.NotNil(t, listCmd.Flags().Lookup("tenant"))
	require.NotNil(t, listCmd.Flags().Lookup("status"))
}

func TestMappingsSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	putCmd, _, err := cmd.Find([]string{"mappings", "put"})
	require.NoError(t, err)
	for _, flag := range []string{"tenant", "connector", "table", "source", "entity", "target"} {
		require.NotNil(t, putCmd.Flags().Lookup(flag), "mappings put --%s", flag)
	}
}

func TestMaterializeFlags(t *testing.T) {
	cmd := NewRootCommand()
	matCmd, _, err := cmd.Find([]string{"materialize"})
	require.NoError(t, err)

	tenantFlag := matCmd.Flags().Lookup("tenant")
	require.NotNil(t, tenantFlag)
	assert.Equal(t, "", tenantFlag.DefValue)

	limitFlag := matCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "1000", limitFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "drift", "sweep"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
