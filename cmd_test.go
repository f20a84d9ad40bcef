package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Version(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "tasting v"+releaseVersion+"\n", out.String())
}

func TestServeCmd_RejectsMissingSecret(t *testing.T) {
	t.Setenv("TASTING_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--postgres-host", "db", "--port", "8080"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt-secret")
}

func TestServeCmd_RejectsBadPort(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--jwt-secret", "s", "--port", "70000"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
}
