package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deskquery/internal/ir"
	"github.com/roach88/deskquery/internal/queryir"
)

func TestRecorderRecordsInOrder(t *testing.T) {
	r := NewRecorder(nil)

	r.SetCollector(queryir.DefaultCollector())
	r.OnQuery("audio", "")
	r.OnSelection(queryir.NewSelection(queryir.FullText, nil, []string{"jazz"}, queryir.String, queryir.DefaultModifiers()))

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventSetCollector, events[0].Type)
	assert.Equal(t, EventOnQuery, events[1].Type)
	assert.Equal(t, "audio", events[1].Content)
	assert.Equal(t, EventOnSelection, events[2].Type)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	assert.Equal(t, 1, r.Count(EventOnSelection))
	require.Len(t, r.Selections(), 1)
	assert.Equal(t, []string{"jazz"}, r.Selections()[0].FieldValues)
}

func TestRecorderForwards(t *testing.T) {
	next := NewRecorder(nil)
	r := NewRecorder(next)

	r.SetCollector(queryir.Collector{Kind: queryir.Or})
	r.OnQuery("", "")
	r.OnSelection(queryir.NewSelection(queryir.Equals, []string{"title"}, []string{"x"}, queryir.String, queryir.DefaultModifiers()))

	assert.Equal(t, r.Events(), next.Events())
}

func TestRecorderReset(t *testing.T) {
	r := NewRecorder(nil)
	r.OnQuery("", "")
	r.OnQuery("", "")
	r.Reset()

	assert.Empty(t, r.Events())
	r.OnQuery("", "")
	assert.Equal(t, int64(1), r.Events()[0].Seq)
}

func TestRecorderConcurrentSeqIsUnique(t *testing.T) {
	r := NewRecorder(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.SetCollector(queryir.DefaultCollector())
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, e := range r.Events() {
		assert.False(t, seen[e.Seq], "duplicate seq %d", e.Seq)
		seen[e.Seq] = true
	}
	assert.Len(t, seen, 50)
}

func TestTraceCanonicalForm(t *testing.T) {
	r := NewRecorder(nil)
	mods := queryir.DefaultModifiers()
	mods.Negate = true
	mods.Boost = 1.5
	r.SetCollector(queryir.Collector{Kind: queryir.Or, Boost: 2})
	r.OnSelection(queryir.NewSelection(queryir.Equals, []string{"Title"}, []string{"jazz"}, queryir.String, mods))

	data, err := ir.MarshalCanonical(r.Trace())
	require.NoError(t, err)
	assert.Equal(t,
		`[{"collector":{"boost":"2","kind":"or","negate":false},"seq":1,"type":"set_collector"},`+
			`{"selection":{"fields":["title"],"kind":"equals","modifiers":{"boost":"1.5","negate":true},"value_type":"string","values":["jazz"]},"seq":2,"type":"on_selection"}]`,
		string(data))
}

func TestSelectionValueOmitsDefaults(t *testing.T) {
	obj := SelectionValue(queryir.NewSelection(queryir.FullText, nil, []string{"a"}, queryir.Phrase, queryir.DefaultModifiers()))
	_, hasMods := obj["modifiers"]
	assert.False(t, hasMods)
	assert.Equal(t, ir.Array{}, obj["fields"])
}
