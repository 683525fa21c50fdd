package cmd

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionalUUID(t *testing.T) {
	id, err := parseOptionalUUID("", "home")
	require.NoError(t, err)
	assert.Nil(t, id, "empty flag means unscoped")

	want := uuid.New()
	id, err = parseOptionalUUID(want.String(), "home")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, want, *id)

	_, err = parseOptionalUUID("not-a-uuid", "home")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--home")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "homelens")
}

func TestQueryRequiresText(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"query"})
	defer rootCmd.SetArgs(nil)

	assert.Error(t, rootCmd.Execute())
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"reindex", "query", "stats", "version"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}
