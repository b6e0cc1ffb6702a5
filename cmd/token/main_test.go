package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/playtracker/internal/auth"
)

const testSecret = "test-secret-at-least-16-chars!!"

func run(t *testing.T, secret func() (string, error), args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := tokenCmd(secret)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func fixedSecret(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func TestToken(t *testing.T) {
	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want auth.Identity
	}{
		{"defaults", nil, auth.Identity{UserID: "admin", Admin: true}},
		{"member", []string{"--sub", "c-ana", "--admin=false", "--ttl", "1h"}, auth.Identity{UserID: "c-ana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := run(t, fixedSecret(testSecret), tt.args...)
			require.NoError(t, err)

			got, err := tokens.Validate(tok)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToken_Errors(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		out, err := run(t, fixedSecret("short"))
		assert.Error(t, err)
		assert.Empty(t, out)
	})

	t.Run("config error", func(t *testing.T) {
		boom := errors.New("JWT_SECRET unreadable")
		_, err := run(t, func() (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("bad ttl", func(t *testing.T) {
		_, err := run(t, fixedSecret(testSecret), "--ttl", "forever")
		assert.Error(t, err)
	})
}
