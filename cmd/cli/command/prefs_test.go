package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToggles(t *testing.T) {
	got, err := parseToggles([]string{"new_message=off", "system=on", "carpool_cancelled=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"new_message": false, "system": true, "carpool_cancelled": true}, got)

	_, err = parseToggles([]string{"new_message"})
	assert.Error(t, err)

	_, err = parseToggles([]string{"=on"})
	assert.Error(t, err)

	_, err = parseToggles([]string{"system=maybe"})
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"auth", "login"},
		{"notifications", "read-all"},
		{"prefs", "set"},
		{"presence", "join"},
		{"stream"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
