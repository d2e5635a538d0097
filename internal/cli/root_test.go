package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{
		{"items"}, {"items", "add"}, {"products", "add"}, {"recipe", "set"},
		{"purchase"}, {"explain"}, {"propagate"}, {"recompute"}, {"health"},
		{"produce"}, {"count"}, {"waste"}, {"sales", "import"}, {"sales", "process"},
		{"register", "open"}, {"register", "post"}, {"register", "close"}, {"register", "audit"},
		{"export-ledger"}, {"purchase-plan"}, {"waste-report"},
	} {
		found, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v", path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestRootCommandGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for name, def := range map[string]string{"config": "", "tenant": "default", "format": "text"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.Equal(t, "c", cmd.PersistentFlags().Lookup("config").Shorthand)
	assert.Equal(t, "t", cmd.PersistentFlags().Lookup("tenant").Shorthand)
}

func TestRequiredFlags(t *testing.T) {
	cmd := NewRootCommand()
	count, _, err := cmd.Find([]string{"count"})
	require.NoError(t, err)
	assert.NotEmpty(t, count.Flags().Lookup("counter").Annotations, "counter must be required")

	waste, _, err := cmd.Find([]string{"waste"})
	require.NoError(t, err)
	assert.NotEmpty(t, waste.Flags().Lookup("type").Annotations, "type must be required")
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "yaml", "items"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEmptyTenantIsCommandError(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--tenant", "", "items"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRegisterPostKeepsNegativeAmountsPositional(t *testing.T) {
	cmd := NewRootCommand()
	post, _, err := cmd.Find([]string{"register", "post"})
	require.NoError(t, err)
	require.NoError(t, post.Flags().Parse([]string{"--description", "rent", "s-1", "EXPENSE", "-10"}))
	assert.Equal(t, []string{"s-1", "EXPENSE", "-10"}, post.Flags().Args())
	desc, err := post.Flags().GetString("description")
	require.NoError(t, err)
	assert.Equal(t, "rent", desc)
}
