package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deskquery/internal/document"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
syntax: compact
query: "title:jazz OR author:coltrane"
content: audio
documents:
  - url: file:///a.mp3
    title: Jazz
    size: 2KB
expect:
  full: true
  selections: 2
  matches: [file:///a.mp3]
assertions:
  - type: selection_contains
    kind: equals
    fields: [title]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, SyntaxCompact, scenario.Syntax)
	assert.Equal(t, "title:jazz OR author:coltrane", scenario.Query)
	assert.Equal(t, "audio", scenario.Content)
	require.Len(t, scenario.Documents, 1)
	assert.Equal(t, document.Size(2000), scenario.Documents[0].Size)
	require.NotNil(t, scenario.Expect.Full)
	assert.True(t, *scenario.Expect.Full)
	require.NotNil(t, scenario.Expect.Selections)
	assert.Equal(t, 2, *scenario.Expect.Selections)
	assert.Equal(t, []string{"file:///a.mp3"}, scenario.Expect.Matches)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, []string{"title"}, scenario.Assertions[0].Fields)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled key"
syntax: compact
query: jazz
assertion: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsyntax: compact\nquery: q\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsyntax: compact\nquery: q\n",
			wantErr: "description is required",
		},
		{
			name:    "missing syntax",
			yaml:    "name: n\ndescription: d\nquery: q\n",
			wantErr: "syntax is required",
		},
		{
			name:    "unknown syntax",
			yaml:    "name: n\ndescription: d\nsyntax: sparql\nquery: q\n",
			wantErr: `unknown syntax "sparql"`,
		},
		{
			name:    "structured without query",
			yaml:    "name: n\ndescription: d\nsyntax: structured\n",
			wantErr: "query is required",
		},
		{
			name:    "structured with content",
			yaml:    "name: n\ndescription: d\nsyntax: structured\nquery: <request/>\ncontent: audio\n",
			wantErr: "compact queries only",
		},
		{
			name:    "error code on compact",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nexpect:\n  error: MALFORMED\n",
			wantErr: "structured queries only",
		},
		{
			name:    "matches without documents",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nexpect:\n  matches: [x]\n",
			wantErr: "requires documents",
		},
		{
			name:    "document without url",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\ndocuments:\n  - title: t\n",
			wantErr: "documents[0]: url is required",
		},
		{
			name:    "assertion without type",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - kind: equals\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion type",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: final_state\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "selection without kind",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: selection_contains\n",
			wantErr: "kind is required",
		},
		{
			name:    "unknown selection kind",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: selection_contains\n    kind: fuzzy\n",
			wantErr: `unknown selection kind "fuzzy"`,
		},
		{
			name:    "unknown value type",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: selection_contains\n    kind: equals\n    value_type: blob\n",
			wantErr: `unknown value type "blob"`,
		},
		{
			name:    "order with one value",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: selection_order\n    values: [a]\n",
			wantErr: "at least two values",
		},
		{
			name:    "count without event",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: event_count\n    count: 1\n",
			wantErr: "event is required",
		},
		{
			name:    "count unknown event",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: event_count\n    event: on_result\n",
			wantErr: `unknown event "on_result"`,
		},
		{
			name:    "negative count",
			yaml:    "name: n\ndescription: d\nsyntax: compact\nquery: q\nassertions:\n  - type: event_count\n    event: on_query\n    count: -1\n",
			wantErr: "count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_EmptyCompactQuery(t *testing.T) {
	s, err := ParseScenario([]byte("name: empty\ndescription: d\nsyntax: compact\n"))
	require.NoError(t, err)
	assert.Empty(t, s.Query)
}
