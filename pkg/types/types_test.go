package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordGetSet(t *testing.T) {
	r := Record{}
	r.Set("heap_size.min", 512)
	r.Set("heap_size.max", 2048)
	r.Set("http_port", 80)

	v, ok := r.Get("heap_size.min")
	assert.True(t, ok)
	assert.Equal(t, 512, v)

	_, ok = r.Get("heap_size.other")
	assert.False(t, ok)

	_, ok = r.Get("http_port.nested")
	assert.False(t, ok, "scalar values have no children")

	assert.Equal(t, map[string]any{"min": 512, "max": 2048}, r["heap_size"])
}

func TestRecordIsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		expected bool
	}{
		{name: "nil record", record: nil, expected: true},
		{name: "all nil leaves", record: Record{"a": nil, "g": map[string]any{"b": nil}}, expected: true},
		{name: "nested value", record: Record{"a": nil, "g": map[string]any{"b": 1}}, expected: false},
		{name: "false is a value", record: Record{"accepted": false}, expected: false},
		{name: "empty list is a value", record: Record{"servers": []any{}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.record.IsEmpty())
		})
	}
}

func TestRecordClone(t *testing.T) {
	orig := Record{
		"servers": []any{map[string]any{"ip": "10.0.0.1"}},
		"group":   map[string]any{"k": "v"},
	}
	c := orig.Clone()

	c.Set("group.k", "changed")
	c["servers"].([]any)[0].(map[string]any)["ip"] = "10.0.0.2"

	assert.Equal(t, "v", orig["group"].(map[string]any)["k"])
	assert.Equal(t, "10.0.0.1", orig["servers"].([]any)[0].(map[string]any)["ip"])
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" Replaced ")
	assert.NoError(t, err)
	assert.Equal(t, OperationReplaced, op)

	_, err = ParseOperation("merged")
	assert.Error(t, err)
}

func TestDiffEmpty(t *testing.T) {
	assert.True(t, Diff{}.Empty())
	assert.True(t, Diff{Before: Record{}, After: Record{}}.Empty())
	assert.False(t, Diff{Before: Record{"a": nil}, After: Record{"a": 1}}.Empty())
}
