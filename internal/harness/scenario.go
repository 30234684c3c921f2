package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/deskquery/internal/document"
	"github.com/roach88/deskquery/internal/queryir"
	"github.com/roach88/deskquery/internal/testutil"
)

// Query syntaxes a scenario can use.
const (
	SyntaxCompact    = "compact"
	SyntaxStructured = "structured"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Syntax is "compact" or "structured".
	Syntax string `yaml:"syntax"`

	// Query is the compact query text or the structured request document.
	Query string `yaml:"query"`

	// Content and Source are delivered through OnQuery before a compact
	// query is parsed. Structured requests carry their own.
	Content string `yaml:"content,omitempty"`
	Source  string `yaml:"source,omitempty"`

	// Documents are indexed into a fresh store before the query runs.
	Documents []document.Metadata `yaml:"documents,omitempty"`

	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the recorded events.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the expected parse outcome. Unset fields are not
// checked.
type ExpectClause struct {
	Full        *bool    `yaml:"full,omitempty"`
	Error       string   `yaml:"error,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Selections  *int     `yaml:"selections,omitempty"`
	Skipped     []string `yaml:"skipped,omitempty"`

	// Matches lists the URLs the query must match, in indexing order.
	// Requires documents.
	Matches []string `yaml:"matches,omitempty"`
}

// Assertion validates the recorded events.
type Assertion struct {
	// Type specifies the assertion type:
	// - "selection_contains": a matching selection was emitted
	// - "selection_order": selections appear in order of their first value
	// - "event_count": an event type appears exactly N times
	Type string `yaml:"type"`

	// Kind, Fields, Values, ValueType and Negate describe the selection
	// (selection_contains). Unset parts match anything.
	Kind      string   `yaml:"kind,omitempty"`
	Fields    []string `yaml:"fields,omitempty"`
	Values    []string `yaml:"values,omitempty"`
	ValueType string   `yaml:"value_type,omitempty"`
	Negate    *bool    `yaml:"negate,omitempty"`

	// Event is the event type counted by event_count.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (event_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSelectionContains = "selection_contains"
	AssertSelectionOrder    = "selection_order"
	AssertEventCount        = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates one scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Syntax {
	case SyntaxCompact:
	case SyntaxStructured:
		if s.Content != "" || s.Source != "" {
			return fmt.Errorf("content and source apply to compact queries only")
		}
	case "":
		return fmt.Errorf("syntax is required")
	default:
		return fmt.Errorf("unknown syntax %q", s.Syntax)
	}

	if s.Query == "" && s.Syntax == SyntaxStructured {
		return fmt.Errorf("query is required for structured scenarios")
	}

	if s.Expect.Error != "" && s.Syntax != SyntaxStructured {
		return fmt.Errorf("expect.error applies to structured queries only")
	}

	if len(s.Expect.Matches) > 0 && len(s.Documents) == 0 {
		return fmt.Errorf("expect.matches requires documents")
	}

	for i, d := range s.Documents {
		if d.URL == "" {
			return fmt.Errorf("documents[%d]: url is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSelectionContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for selection_contains", index)
		}
		if _, ok := queryir.ParseSelectionKind(a.Kind); !ok {
			return fmt.Errorf("assertions[%d]: unknown selection kind %q", index, a.Kind)
		}
		if a.ValueType != "" {
			if _, ok := queryir.ParseValueType(a.ValueType); !ok {
				return fmt.Errorf("assertions[%d]: unknown value type %q", index, a.ValueType)
			}
		}
	case AssertSelectionOrder:
		if len(a.Values) < 2 {
			return fmt.Errorf("assertions[%d]: selection_order needs at least two values", index)
		}
	case AssertEventCount:
		switch a.Event {
		case testutil.EventSetCollector, testutil.EventOnQuery, testutil.EventOnSelection:
		case "":
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		default:
			return fmt.Errorf("assertions[%d]: unknown event %q", index, a.Event)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
