package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/records/filestore"
	"github.com/Adithya-Monish-Kumar-K/compliance-search/internal/search"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	store := filestore.New(data)
	require.NoError(t, store.Write(records.TypeTask, []records.Task{
		{Key: "T-1", Title: "GDPR data audit", ComplianceArea: "Data Protection", Status: "Open", Priority: "High"},
		{Key: "T-2", Title: "Fire drill", ComplianceArea: "Health and Safety", Status: "Closed", Priority: "Low"},
	}))
	require.NoError(t, store.Write(records.TypeTeam, []records.TeamMember{
		{Name: "Grace Dean", Email: "grace@example.com", Role: "Auditor"},
	}))

	cfg := fmt.Sprintf(`store:
  driver: file
  dataDir: %s
index:
  path: %s
search:
  exportDir: %s
`, data, filepath.Join(dir, "index.json"), filepath.Join(dir, "exports"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRebuildAndStats(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := run(t, "rebuild", "--config", cfg, "--table", "task")
	require.NoError(t, err)
	assert.Contains(t, out, "rebuilt")

	out, err = run(t, "stats", "--config", cfg)
	require.NoError(t, err)
	var stats struct {
		TotalRecords int `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.TotalRecords)
}

func TestRebuildRejectsUnknownTable(t *testing.T) {
	cfg, _ := writeConfig(t)
	_, err := run(t, "rebuild", "--config", cfg, "--table", "documents")
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := run(t, "search", "--config", cfg, "--scope", "tasks", "--filter", "status:=:Open", "gdpr", "audit")
	require.NoError(t, err)

	var resp search.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "gdpr audit", resp.Query)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "T-1", resp.Results[0].RecordKey)

	_, err = run(t, "search", "--config", cfg, "--op", "xor", "gdpr")
	assert.Error(t, err)
}

func TestSuggestCommand(t *testing.T) {
	cfg, _ := writeConfig(t)
	out, err := run(t, "suggest", "--config", cfg, "--scope", "team", "gra")
	require.NoError(t, err)
	assert.Equal(t, "Grace Dean", strings.TrimSpace(out))
}

func TestExportCommand(t *testing.T) {
	cfg, dir := writeConfig(t)
	out, err := run(t, "export", "--config", cfg, "--scope", "tasks", "--format", "json", "gdpr")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(dir, "exports"), filepath.Dir(path))
	assert.Equal(t, ".json", filepath.Ext(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = run(t, "export", "--config", cfg, "--format", "pdf", "gdpr")
	assert.Error(t, err)
}
