package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_HasAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{
		"build", "query", "feedback", "thumb", "feedback-batch",
		"sync-feedback", "recommend", "stats", "status", "log", "watch",
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
}

func TestNewRootCmd_HasDebugFlag(t *testing.T) {
	root := NewRootCmd()
	flag := root.PersistentFlags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestQueryCmd_RetrieveAlias(t *testing.T) {
	root := NewRootCmd()
	cmd, _, err := root.Find([]string{"retrieve"})
	require.NoError(t, err)
	assert.Equal(t, "query", cmd.Name())
}

func TestThumbCmd_RejectsBadVote(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"thumb", "sideways", "1"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "up or down")
}

func TestThumbCmd_RejectsNonNumericPosition(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"thumb", "up", "two"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position must be a number")
}

func TestQueryCmd_RequiresArgs(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"query"})

	err := root.Execute()
	require.Error(t, err)
}
