// Package config loads deskquery settings: the field-to-index mapping used by
// query builders, the content-class table, parser defaults and the document
// store connection.
//
// Files are YAML. Values from a file overlay the built-in defaults and the
// merged result is validated against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// ClassNamespace is the prefix some clients put in front of class names.
const ClassNamespace = "xesam:"

// Config is the full deskquery configuration.
type Config struct {
	// Fields maps query field names to free-text index prefixes.
	Fields map[string]string `yaml:"fields" json:"fields"`

	// BooleanFields maps query field names to verbatim filter prefixes.
	BooleanFields map[string]string `yaml:"boolean_fields" json:"boolean_fields"`

	// SizeFields names the fields compared as byte sizes.
	SizeFields []string `yaml:"size_fields" json:"size_fields"`

	// Classes maps content-class names to their filter and media types.
	Classes map[string]Class `yaml:"classes" json:"classes"`

	Parser ParserConfig `yaml:"parser" json:"parser"`
	Store  StoreConfig  `yaml:"store" json:"store"`
}

// Class is one content class, such as audio or email.
//
// Filter is a boolean filter expression ("class:audio"). MimeTypes lists the
// media types, exact or "major/*", that classify a document into the class.
// A class without media types is an alias used only in queries.
type Class struct {
	Filter    string   `yaml:"filter" json:"filter"`
	MimeTypes []string `yaml:"mime_types" json:"mime_types"`
}

// ParserConfig holds query parsing defaults.
type ParserConfig struct {
	// DefaultOperator joins adjacent words of free text: "and" or "or".
	DefaultOperator string `yaml:"default_operator" json:"default_operator"`

	// ProximityWindow is the NEAR window when a selection sets no distance.
	ProximityWindow int `yaml:"proximity_window" json:"proximity_window"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Driver is "sqlite" (pure Go), "sqlite3" (cgo) or "pgx" (PostgreSQL).
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Fields: map[string]string{
			"title":    "title",
			"subject":  "title",
			"caption":  "title",
			"author":   "author",
			"creator":  "author",
			"from":     "author",
			"content":  "content",
			"body":     "content",
			"filename": "filename",
			"name":     "filename",
		},
		BooleanFields: map[string]string{
			"type":     "mimetype",
			"class":    "class",
			"url":      "url",
			"ext":      "ext",
			"charset":  "charset",
			"language": "lang",
			"lang":     "lang",
		},
		SizeFields: []string{"size"},
		Classes: map[string]Class{
			"audio":    {Filter: "class:audio", MimeTypes: []string{"audio/*"}},
			"video":    {Filter: "class:video", MimeTypes: []string{"video/*"}},
			"image":    {Filter: "class:image", MimeTypes: []string{"image/*"}},
			"email":    {Filter: "class:email", MimeTypes: []string{"message/rfc822", "text/x-mail"}},
			"message":  {Filter: "class:email", MimeTypes: []string{}},
			"folder":   {Filter: "class:folder", MimeTypes: []string{"inode/directory"}},
			"document": {Filter: "class:document", MimeTypes: []string{"text/*", "application/pdf", "application/msword", "application/rtf"}},
			"archive":  {Filter: "class:archive", MimeTypes: []string{"application/zip", "application/x-tar", "application/gzip", "application/x-7z-compressed"}},
		},
		Parser: ParserConfig{
			DefaultOperator: "and",
			ProximityWindow: 10,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "deskquery.db",
		},
	}
}

// Error codes for configuration failures.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeDecode   = "CONFIG_DECODE"
	ErrCodeSchema   = "CONFIG_SCHEMA"
)

// ConfigError reports a configuration that could not be loaded or is invalid.
type ConfigError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	switch {
	case e.Pos.IsValid():
		return fmt.Sprintf("%s: %s:%d:%d: %s", e.Code, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is a ConfigError with the given code.
func IsConfigError(err error, code string) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Code: ErrCodeNotFound, Path: path, Message: "file does not exist"}
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return cfg, nil
}

// Decode reads YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigError{Code: ErrCodeDecode, Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against the CUE schema.
func (c *Config) Validate() error {
	c.normalize()

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return &ConfigError{Code: ErrCodeSchema, Message: err.Error()}
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// normalize replaces nil collections so they encode as empty CUE values.
func (c *Config) normalize() {
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	if c.BooleanFields == nil {
		c.BooleanFields = map[string]string{}
	}
	if c.SizeFields == nil {
		c.SizeFields = []string{}
	}
	if c.Classes == nil {
		c.Classes = map[string]Class{}
	}
	for name, class := range c.Classes {
		if class.MimeTypes == nil {
			class.MimeTypes = []string{}
			c.Classes[name] = class
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ConfigError{Code: ErrCodeSchema, Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	ce := &ConfigError{Code: ErrCodeSchema, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// NormalizeClassName lower-cases a class name and strips the namespace.
func NormalizeClassName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, ClassNamespace)
}

// ClassFilter returns the filter expression of the named class.
func (c *Config) ClassFilter(name string) (string, bool) {
	class, ok := c.Classes[NormalizeClassName(name)]
	if !ok || class.Filter == "" {
		return "", false
	}
	return class.Filter, true
}

// ClassForMimeType returns the class a media type belongs to.
// Exact media types win over "major/*" patterns; ties go to the
// alphabetically first class.
func (c *Config) ClassForMimeType(mimeType string) (string, bool) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		return "", false
	}

	names := make([]string, 0, len(c.Classes))
	for name := range c.Classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, pattern := range c.Classes[name].MimeTypes {
			if pattern == mimeType {
				return name, true
			}
		}
	}
	for _, name := range names {
		for _, pattern := range c.Classes[name].MimeTypes {
			if ok, _ := path.Match(pattern, mimeType); ok {
				return name, true
			}
		}
	}
	return "", false
}

// FieldPrefix returns the free-text index prefix for a field name.
func (c *Config) FieldPrefix(name string) (string, bool) {
	prefix, ok := c.Fields[strings.ToLower(name)]
	return prefix, ok
}

// IsSizeField reports whether name is compared as a byte size.
func (c *Config) IsSizeField(name string) bool {
	name = strings.ToLower(name)
	for _, f := range c.SizeFields {
		if strings.ToLower(f) == name {
			return true
		}
	}
	return false
}
