package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/identity"
)

const testSecret = "test-secret"

func TestGenTokenSingle(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--secret", testSecret, "alice"})
	require.NoError(t, cmd.Execute())

	sess, err := identity.NewTokens([]byte(testSecret), "taskboard", "taskboard").Verify(out.String())
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, identity.PurposeSession, sess.Purpose)
}

func TestGenTokenBatchWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--secret", testSecret, "--count", "3", "--start", "5", "--output", path})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var tokens []string
	require.NoError(t, sonic.Unmarshal(data, &tokens))
	require.Len(t, tokens, 3)

	verifier := identity.NewTokens([]byte(testSecret), "taskboard", "taskboard")
	for i, tok := range tokens {
		sess, err := verifier.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, []string{"perf-user-5", "perf-user-6", "perf-user-7"}[i], sess.UserID)
	}
}

func TestGenTokenRejectsBadInput(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	cases := map[string][]string{
		"no secret":         {"alice"},
		"zero count":        {"--secret", testSecret, "--count", "0"},
		"explicit and many": {"--secret", testSecret, "--count", "2", "alice"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(args)
			assert.Error(t, cmd.Execute())
		})
	}
}
