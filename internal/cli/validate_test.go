package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCommandDefaults(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Equal(t, "✓ Built-in configuration valid\n", out)
}

func TestValidateCommandValidFile(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: sqlite3\n  dsn: /tmp/index.db\n")

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ "+path+" valid\n", out)

	out, err = execute(t, "--config", path, "--format", "json", "validate")
	require.NoError(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, path, resp.Data.Path)
}

func TestValidateCommandInvalid(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		code     string
		contains string
	}{
		{
			name:     "schema violation",
			content:  "parser:\n  default_operator: xor\n",
			code:     "CONFIG_SCHEMA",
			contains: "✗ Validation failed",
		},
		{
			name:     "unknown key",
			content:  "colour: blue\n",
			code:     "CONFIG_DECODE",
			contains: "colour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)

			out, err := execute(t, "validate", path)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "["+tt.code+"]")
			assert.Contains(t, out, tt.contains)

			out, err = execute(t, "--format", "json", "validate", path)
			require.Error(t, err)
			var resp struct {
				Status string           `json:"status"`
				Data   ValidationResult `json:"data"`
				Error  *CLIError        `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.False(t, resp.Data.Valid)
			require.Len(t, resp.Data.Errors, 1)
			assert.Equal(t, tt.code, resp.Data.Errors[0].Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeConfig, resp.Error.Code)
		})
	}
}

func TestValidateCommandMissingFile(t *testing.T) {
	out, err := execute(t, "validate", "/nonexistent/deskquery.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [CONFIG_NOT_FOUND]")
}

func TestValidateCommandTooManyArgs(t *testing.T) {
	_, err := execute(t, "validate", "a.yaml", "b.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts at most 1 arg")
}
