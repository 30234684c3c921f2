package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Metadata is one JSON-lines record describing a file. Scenario files carry
// the same record in YAML.
type Metadata struct {
	URL      string `json:"url" yaml:"url"`
	IPath    string `json:"ipath,omitempty" yaml:"ipath,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Author   string `json:"author,omitempty" yaml:"author,omitempty"`
	Content  string `json:"content,omitempty" yaml:"content,omitempty"`
	MimeType string `json:"mimetype,omitempty" yaml:"mimetype,omitempty"`
	Charset  string `json:"charset,omitempty" yaml:"charset,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Modified string `json:"modified,omitempty" yaml:"modified,omitempty"`
	Size     Size   `json:"size,omitempty" yaml:"size,omitempty"`
}

// Size is a byte count written either as a JSON number or as a humanized
// string ("4.2 MB", "10KiB").
type Size int64

// UnmarshalJSON accepts a number or a humanized size string.
func (s *Size) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		n, err := humanize.ParseBytes(text)
		if err != nil {
			return fmt.Errorf("size %q: %w", text, err)
		}
		*s = Size(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("size %s: %w", data, err)
	}
	*s = Size(n)
	return nil
}

// UnmarshalYAML accepts an integer or a humanized size string.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*s = Size(n)
		return nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	u, err := humanize.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("size %q: %w", text, err)
	}
	*s = Size(u)
	return nil
}

// maxLine bounds one metadata record.
const maxLine = 16 << 20

// ReadJSONLines decodes one Metadata record per line of r and passes each
// to fn with its 1-based line number. Blank lines are skipped. Unknown keys
// are rejected. Reading stops at the first error from decoding or from fn.
func ReadJSONLines(r io.Reader, fn func(line int, m Metadata) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var m Metadata
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(line, m); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	return nil
}
