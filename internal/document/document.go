// Package document turns file metadata into indexable documents.
//
// Metadata arrives as JSON lines, one record per file:
//
//	{"url":"file:///music/kind_of_blue.mp3","title":"Kind of Blue","mimetype":"audio/mpeg","modified":"2009-05-01T10:30:00Z","size":"4.2 MB"}
//
// A Document carries the normalised fields and produces the postings the
// store indexes: words per text field in every analyzer form, the same words
// unprefixed, and verbatim boolean values.
package document

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roach88/deskquery/internal/backend"
	"github.com/roach88/deskquery/internal/config"
	"github.com/roach88/deskquery/internal/queryir"
)

// fieldGap separates the unprefixed positions of consecutive text fields so
// phrases and proximity groups never straddle two fields.
const fieldGap = 100

// Document is one indexable file or embedded item.
type Document struct {
	URL      string
	IPath    string
	Title    string
	Author   string
	Content  string
	Filename string
	MimeType string
	Class    string
	Ext      string
	Charset  string
	Language string
	Modified time.Time
	Size     int64
}

// Posting is one indexed word occurrence. Forms holds the word as each
// analyzer form would produce it.
type Posting struct {
	Field    string
	Forms    backend.Variants
	Position int
}

// FromMetadata builds a Document from a metadata record. The class is
// derived from the media type through cfg.
func FromMetadata(m Metadata, cfg *config.Config) (Document, error) {
	if m.URL == "" {
		return Document{}, errors.New("metadata record has no url")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	d := Document{
		URL:      m.URL,
		IPath:    m.IPath,
		Title:    m.Title,
		Author:   m.Author,
		Content:  m.Content,
		MimeType: normalizeMimeType(m.MimeType),
		Charset:  strings.ToLower(m.Charset),
		Language: strings.ToLower(m.Language),
		Size:     int64(m.Size),
	}

	p := m.URL
	if u, err := url.Parse(m.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	d.Filename = path.Base(p)
	if d.Filename == "." || d.Filename == "/" {
		d.Filename = ""
	}
	d.Ext = strings.ToLower(strings.TrimPrefix(path.Ext(d.Filename), "."))

	if class, ok := cfg.ClassForMimeType(d.MimeType); ok {
		d.Class = class
	}

	if m.Modified != "" {
		t, _, ok := queryir.ParseDate(m.Modified)
		if !ok {
			return Document{}, fmt.Errorf("%s: unparseable modified date %q", m.URL, m.Modified)
		}
		d.Modified = t
	}
	return d, nil
}

func normalizeMimeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// Day returns the modification date as YYYYMMDD, or "" when unknown.
func (d Document) Day() string {
	if d.Modified.IsZero() {
		return ""
	}
	return d.Modified.Format("20060102")
}

// Clock returns the modification time of day as HHMMSS, or "" when unknown.
func (d Document) Clock() string {
	if d.Modified.IsZero() {
		return ""
	}
	return d.Modified.Format("150405")
}

// HumanSize formats the size for display ("4.2 MB").
func (d Document) HumanSize() string {
	if d.Size <= 0 {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(d.Size))
}

// Postings lists the words and values indexed for d.
//
// Text fields are indexed twice: under their own field with positions from
// zero, and unprefixed with positions running across fields. Boolean values
// are indexed verbatim, identical in every form, at position zero.
func (d Document) Postings() []Posting {
	var out []Posting

	next := 0
	for _, f := range []struct{ field, text string }{
		{"title", d.Title},
		{"author", d.Author},
		{"filename", d.Filename},
		{"content", d.Content},
	} {
		words := backend.IndexWords(f.text)
		for i, w := range words {
			out = append(out,
				Posting{Field: f.field, Forms: w, Position: i},
				Posting{Field: "", Forms: w, Position: next + i})
		}
		if len(words) > 0 {
			next += len(words) + fieldGap
		}
	}

	for _, f := range []struct{ field, value string }{
		{"mimetype", d.MimeType},
		{"class", d.Class},
		{"url", d.URL},
		{"ext", d.Ext},
		{"charset", d.Charset},
		{"lang", d.Language},
	} {
		if f.value != "" {
			out = append(out, Posting{Field: f.field, Forms: backend.Same(f.value)})
		}
	}
	return out
}
