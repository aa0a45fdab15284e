package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChannelName(t *testing.T) {
	maxLen := 25

	require.NoError(t, ValidateChannelName("devtalk", maxLen))
	require.NoError(t, ValidateChannelName("general", maxLen))

	assert.ErrorIs(t, ValidateChannelName("", maxLen), ErrInvalidChannelName)
	assert.ErrorIs(t, ValidateChannelName("general chat", maxLen), ErrInvalidChannelName)
	assert.ErrorIs(t, ValidateChannelName("tab\tname", maxLen), ErrInvalidChannelName)
	assert.ErrorIs(t, ValidateChannelName(strings.Repeat("a", 26), maxLen), ErrInvalidChannelName)
	assert.NoError(t, ValidateChannelName(strings.Repeat("a", 25), maxLen))
}

func TestValidateChannelNameReservedWords(t *testing.T) {
	for _, name := range []string{"del", "new", "list", "all", "none", "help", "quit", "exit", "DEL", "Quit"} {
		assert.ErrorIs(t, ValidateChannelName(name, 25), ErrInvalidChannelName, name)
	}
}
