package testutil

import (
	"strconv"
	"sync"

	"github.com/roach88/deskquery/internal/ir"
	"github.com/roach88/deskquery/internal/queryir"
)

// Event types recorded by Recorder.
const (
	EventSetCollector = "set_collector"
	EventOnQuery      = "on_query"
	EventOnSelection  = "on_selection"
)

// Event is one builder call captured by a Recorder.
//
// Seq is a logical clock starting at 1 so traces compare byte for byte
// across runs. Exactly one of Collector, Query or Selection is set,
// matching Type.
type Event struct {
	Seq       int64
	Type      string
	Collector queryir.Collector
	Content   string
	Source    string
	Selection queryir.Selection
}

// Recorder is a queryir.QueryBuilder that records every call and forwards
// it to an optional next builder.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex,
// although parsers drive a builder from one goroutine at a time.
type Recorder struct {
	mu     sync.Mutex
	seq    int64
	events []Event
	next   queryir.QueryBuilder
}

// NewRecorder creates a recorder forwarding to next (may be nil).
func NewRecorder(next queryir.QueryBuilder) *Recorder {
	return &Recorder{next: next}
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.seq++
	e.Seq = r.seq
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// SetCollector implements queryir.QueryBuilder.
func (r *Recorder) SetCollector(c queryir.Collector) {
	r.record(Event{Type: EventSetCollector, Collector: c})
	if r.next != nil {
		r.next.SetCollector(c)
	}
}

// OnQuery implements queryir.QueryBuilder.
func (r *Recorder) OnQuery(content, source string) {
	r.record(Event{Type: EventOnQuery, Content: content, Source: source})
	if r.next != nil {
		r.next.OnQuery(content, source)
	}
}

// OnSelection implements queryir.QueryBuilder.
func (r *Recorder) OnSelection(sel queryir.Selection) {
	r.record(Event{Type: EventOnSelection, Selection: sel})
	if r.next != nil {
		r.next.OnSelection(sel)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Selections returns the recorded selections in order.
func (r *Recorder) Selections() []queryir.Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queryir.Selection
	for _, e := range r.events {
		if e.Type == EventOnSelection {
			out = append(out, e.Selection)
		}
	}
	return out
}

// Count returns how many events of the given type were recorded.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// Reset clears the events and restarts the logical clock.
// After Reset, the next event gets Seq 1.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = 0
	r.events = nil
}

// Trace renders the events as canonical values for golden files and
// fingerprints. Floats are rendered as strings.
func (r *Recorder) Trace() ir.Array {
	return Trace(r.Events())
}

// Trace renders events in canonical form.
func Trace(events []Event) ir.Array {
	arr := make(ir.Array, len(events))
	for i, e := range events {
		arr[i] = EventValue(e)
	}
	return arr
}

// EventValue converts one event to its canonical form.
func EventValue(e Event) ir.Object {
	obj := ir.Object{
		"seq":  ir.Int(e.Seq),
		"type": ir.String(e.Type),
	}
	switch e.Type {
	case EventSetCollector:
		obj["collector"] = CollectorValue(e.Collector)
	case EventOnQuery:
		obj["content"] = ir.String(e.Content)
		obj["source"] = ir.String(e.Source)
	case EventOnSelection:
		obj["selection"] = SelectionValue(e.Selection)
	}
	return obj
}

// CollectorValue converts a collector to its canonical form.
func CollectorValue(c queryir.Collector) ir.Object {
	return ir.Object{
		"kind":   ir.String(c.Kind.String()),
		"negate": ir.Bool(c.Negate),
		"boost":  ir.String(formatFloat(c.Boost)),
	}
}

// SelectionValue converts a selection to its canonical form. Modifiers equal
// to their defaults are omitted to keep traces readable.
func SelectionValue(s queryir.Selection) ir.Object {
	obj := ir.Object{
		"kind":       ir.String(s.Kind.String()),
		"fields":     ir.Strings(s.FieldNames),
		"values":     ir.Strings(s.FieldValues),
		"value_type": ir.String(s.ValueType.String()),
	}
	if mods := modifierValues(s.Modifiers); len(mods) > 0 {
		obj["modifiers"] = mods
	}
	return obj
}

func modifierValues(m queryir.Modifiers) ir.Object {
	d := queryir.DefaultModifiers()
	obj := ir.Object{}
	if m.Phrase != d.Phrase {
		obj["phrase"] = ir.Bool(m.Phrase)
	}
	if m.CaseSensitive != d.CaseSensitive {
		obj["case_sensitive"] = ir.Bool(m.CaseSensitive)
	}
	if m.DiacriticSensitive != d.DiacriticSensitive {
		obj["diacritic_sensitive"] = ir.Bool(m.DiacriticSensitive)
	}
	if m.Slack != d.Slack {
		obj["slack"] = ir.Int(m.Slack)
	}
	if m.Ordered != d.Ordered {
		obj["ordered"] = ir.Bool(m.Ordered)
	}
	if m.Stemming != d.Stemming {
		obj["stemming"] = ir.Bool(m.Stemming)
	}
	if m.Language != d.Language {
		obj["language"] = ir.String(m.Language)
	}
	if m.Fuzzy != d.Fuzzy {
		obj["fuzzy"] = ir.String(formatFloat(m.Fuzzy))
	}
	if m.Distance != d.Distance {
		obj["distance"] = ir.Int(m.Distance)
	}
	if m.Negate != d.Negate {
		obj["negate"] = ir.Bool(m.Negate)
	}
	if m.Boost != d.Boost {
		obj["boost"] = ir.String(formatFloat(m.Boost))
	}
	if m.Content != d.Content {
		obj["content"] = ir.String(m.Content)
	}
	if m.Source != d.Source {
		obj["source"] = ir.String(m.Source)
	}
	return obj
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
