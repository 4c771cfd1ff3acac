package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/opsdash/internal/core"
	"github.com/JonMunkholm/opsdash/internal/database"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dir, "cli.db"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Pipeline commands
// =============================================================================

func TestIngestPromoteAndList(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "stock.csv", "sku;name;quantity;threshold\nA1;Widget;3;1\nB2;;1;1\n")

	out, err := execute(t, "ingest", path, "--promote")
	require.NoError(t, err)

	var res struct {
		Ingest  core.IngestResult  `json:"ingest"`
		Promote core.PromoteResult `json:"promote"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, ";", res.Ingest.Delimiter)
	assert.Equal(t, 1, res.Ingest.ValidRows)
	assert.Equal(t, 1, res.Ingest.InvalidRows)
	assert.Equal(t, 1, res.Promote.Created)

	out, err = execute(t, "jobs", "--json")
	require.NoError(t, err)
	var jobs []database.ImportJob
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, res.Ingest.JobID, jobs[0].ID)
	assert.Equal(t, "stock.csv", jobs[0].Filename)

	out, err = execute(t, "jobs")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ID"))
	assert.Contains(t, out, res.Ingest.JobID)

	out, err = execute(t, "invalid-rows", res.Ingest.JobID, "--csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "_line,_error,sku,name,quantity,threshold\n"), out)

	out, err = execute(t, "delete", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, `"jobs": 1`)
}

func TestIngest_InputErrorNamesJob(t *testing.T) {
	dir := setupEnv(t)
	path := writeFile(t, dir, "bad.csv", "sku,name\nA1,Widget\n")

	_, err := execute(t, "ingest", path)
	require.Error(t, err)
	assert.Equal(t, core.KindInput, core.KindOf(err))

	msg := describe(err)
	assert.Contains(t, msg, "IMP003")
	assert.Contains(t, msg, "[job "+core.JobIDOf(err)+"]")
}

func TestPromote_UnknownJob(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "promote", "nope")
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestDeleteArgs(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "delete")
	assert.Error(t, err)
	_, err = execute(t, "delete", "x", "--all")
	assert.Error(t, err)
}

// =============================================================================
// Template
// =============================================================================

func TestTemplateNeedsNoDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	out, err := execute(t, "template")
	require.NoError(t, err)
	assert.Equal(t, "sku,name,quantity,threshold\nWID-001,Widget,10,2\n", out)

	dir := t.TempDir()
	target := filepath.Join(dir, "t.xlsx")
	_, err = execute(t, "template", "--format", "xlsx", "-o", target)
	require.NoError(t, err)
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = execute(t, "template", "--format", "ods")
	assert.Error(t, err)
}
