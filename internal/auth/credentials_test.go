package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_Verify(t *testing.T) {
	c := NewCredentials("preview", "launch-day", "")

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"exact match", "preview", "launch-day", true},
		{"wrong password", "preview", "launch-night", false},
		{"wrong username", "Preview", "launch-day", false},
		{"both wrong", "admin", "admin", false},
		{"missing username", "", "launch-day", false},
		{"missing password", "preview", "", false},
		{"password prefix", "preview", "launch", false},
		{"trailing space", "preview ", "launch-day", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Verify(tt.username, tt.password))
		})
	}
}

func TestCredentials_UnconfiguredRejectsEverything(t *testing.T) {
	c := NewCredentials("", "", "")
	assert.False(t, c.Verify("", ""))
	assert.False(t, c.Verify("anyone", "anything"))
}

func TestCredentials_BcryptHash(t *testing.T) {
	hash, err := HashPassword("launch-day")
	require.NoError(t, err)

	c := NewCredentials("preview", "ignored-when-hash-set", hash)
	assert.True(t, c.Verify("preview", "launch-day"))
	assert.False(t, c.Verify("preview", "ignored-when-hash-set"))
}
