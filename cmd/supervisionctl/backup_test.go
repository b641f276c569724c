package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-supervision-api/internal/models"
)

func TestBackupFileRoundTrip(t *testing.T) {
	file := models.BackupFile{
		"teachers": `[{"id":"t1","name":"Sara","school":"A"}]`,
		"theme":    `"dark"`,
	}
	path := filepath.Join(t.TempDir(), "backup.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, writeBackup(f, file))
	require.NoError(t, f.Close())

	loaded, err := readBackup(path)
	require.NoError(t, err)
	assert.Equal(t, file, loaded)
}

func TestBackupImportDryRun(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"teachers":"[]","schools":"[\"A\"]"}`), 0o600))
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"teachers":"not json"}`), 0o600))

	t.Run("valid file", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"backup", "import", "--dry-run", valid})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "valid backup with 2 keys")
	})

	t.Run("invalid file", func(t *testing.T) {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"backup", "import", "--dry-run", invalid})

		assert.Error(t, cmd.Execute())
	})
}

func TestBackupExportRejectsUnknownSlice(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"backup", "export", "--slice", "classroom:7"})

	assert.Error(t, cmd.Execute())
}
