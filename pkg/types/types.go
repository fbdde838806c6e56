package types

import (
	"fmt"
	"strings"
)

// Record is a canonical configuration record. Nested groups are stored as
// nested maps and addressed with dotted paths (e.g. "heap_size.min").
type Record map[string]any

// WireRecord is the appliance's native JSON object
type WireRecord map[string]any

// Operation is one of the declarative operation modes
type Operation string

const (
	OperationGathered Operation = "gathered"
	OperationReplaced Operation = "replaced"
	OperationDeleted  Operation = "deleted"
)

// ParseOperation converts a user supplied string into an Operation
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(s))); op {
	case OperationGathered, OperationReplaced, OperationDeleted:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q, expected one of gathered, replaced, deleted", s)
	}
}

// Invocation is the input contract of a single convergence run
type Invocation struct {
	Operation Operation
	Desired   Record
	DryRun    bool
}

// Diff holds the before/after values of the keys that differ.
// Both sides empty means "no difference".
type Diff struct {
	Before Record `json:"before"`
	After  Record `json:"after"`
}

// Empty reports whether the diff carries no difference
func (d Diff) Empty() bool {
	return len(d.Before) == 0 && len(d.After) == 0
}

// Result is the output contract of a single invocation
type Result struct {
	Changed  bool     `json:"changed"`
	Diff     Diff     `json:"diff"`
	Warnings []string `json:"warnings"`

	// Gathered is only set for read operations
	Gathered any `json:"gathered,omitempty"`
}

// Get returns the value stored at a dotted path and whether the path exists
func (r Record) Get(path string) (any, bool) {
	if r == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = map[string]any(r)
	for _, p := range parts {
		m, ok := AsMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at a dotted path, creating intermediate groups as needed
func (r Record) Set(path string, v any) {
	parts := strings.Split(path, ".")
	cur := map[string]any(r)
	for _, p := range parts[:len(parts)-1] {
		next, ok := AsMap(cur[p])
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// IsEmpty reports whether every leaf of the record is nil. An unconfigured
// subsystem maps to a record that is empty in this sense.
func (r Record) IsEmpty() bool {
	return allNil(map[string]any(r))
}

func allNil(m map[string]any) bool {
	for _, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := AsMap(v); ok {
			if !allNil(nested) {
				return false
			}
			continue
		}
		return false
	}
	return true
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies maps and slices, scalars are returned as is
func CloneValue(v any) any {
	if m, ok := AsMap(v); ok {
		return cloneMap(m)
	}
	if l, ok := v.([]any); ok {
		out := make([]any, len(l))
		for i, e := range l {
			out[i] = CloneValue(e)
		}
		return out
	}
	return v
}

// AsMap unwraps the map flavours that can show up in a record: Record,
// WireRecord and plain map[string]any from JSON or YAML decoding.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return map[string]any(m), true
	case WireRecord:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
