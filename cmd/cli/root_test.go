package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: memory
remediation:
  provider: simulated
  delayMs: 1
log:
  level: error
`), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd(&out, &logs)
	cmd.SetErr(&logs)
	cmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Scan(t *testing.T) {
	out, err := execute(t, "scan")
	require.NoError(t, err)

	var res struct {
		ScanID string            `json:"scanId"`
		Risks  []json.RawMessage `json:"risks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.ScanID)
	assert.Len(t, res.Risks, 3)
}

func TestCLI_FreshStoreQueries(t *testing.T) {
	out, err := execute(t, "risks", "--severity", "high")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	out, err = execute(t, "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"totalRisks":0,"highSeverity":0,"mediumSeverity":0,"lowSeverity":0}`, out)

	out, err = execute(t, "status", "7")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"NONE","lastAttempt":null,"attemptCount":0}`, out)

	out, err = execute(t, "history", "7")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)

	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"migrated","driver":"memory"}`, out)
}

func TestCLI_Errors(t *testing.T) {
	_, err := execute(t, "risks", "--severity", "urgent")
	assert.ErrorContains(t, err, "invalid severity")

	_, err = execute(t, "resources", "--type", "vm")
	assert.ErrorContains(t, err, "invalid resource type")

	_, err = execute(t, "risk", "abc")
	assert.ErrorContains(t, err, "invalid id")

	_, err = execute(t, "risk", "5")
	assert.ErrorContains(t, err, "not found")

	out, err := execute(t, "remediate", "5")
	assert.Error(t, err)
	assert.JSONEq(t, `{"status":"failed","riskId":5,"message":"Remediation failed"}`, out)
}

func TestCLI_MissingExplicitConfig(t *testing.T) {
	var out, logs bytes.Buffer
	cmd := newRootCmd(&out, &logs)
	cmd.SetErr(&logs)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "stats"})
	assert.Error(t, cmd.Execute())
}
