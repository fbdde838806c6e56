package mapper

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/types"
	"github.com/hashicorp/go-multierror"
)

// Kind describes how a field's value is shaped and compared
type Kind int

const (
	// Scalar is a single string, number or boolean
	Scalar Kind = iota
	// List is a list of scalars compared as a set
	List
	// RecordList is a list of records mapped with Field.Elem
	RecordList
	// Object is an opaque nested object compared as a set of pairs
	Object
)

// Field maps one canonical key to one wire key
type Field struct {
	// Canonical is the stable key, dotted for nested groups ("heap_size.min")
	Canonical string
	// Wire is the appliance's key
	Wire string
	Kind Kind
	// Elem maps the elements of a RecordList
	Elem FieldMap

	// ReadOnly fields are reported but never diffed or written
	ReadOnly bool
	// WriteOnly fields are written but never diffed (secrets the appliance does not echo)
	WriteOnly bool
	// Key fields identify an object: diffed, never written
	Key bool
	// Bool fields accept yes/no style desired values
	Bool bool
}

// Comparable reports whether the field takes part in diffing
func (f Field) Comparable() bool {
	return !f.ReadOnly && !f.WriteOnly
}

// Writable reports whether the field is emitted on writes
func (f Field) Writable() bool {
	return !f.ReadOnly && !f.Key
}

// FieldMap is the static, ordered mapping declared once per subsystem
type FieldMap []Field

// Lookup finds a field by canonical key
func (fm FieldMap) Lookup(canonical string) (Field, bool) {
	for _, f := range fm {
		if f.Canonical == canonical {
			return f, true
		}
	}
	return Field{}, false
}

// isGroup reports whether prefix names a group of dotted canonical keys
func (fm FieldMap) isGroup(prefix string) bool {
	for _, f := range fm {
		if strings.HasPrefix(f.Canonical, prefix+".") {
			return true
		}
	}
	return false
}

// ToCanonical maps a wire record to a canonical record. Every mapped key is
// populated; keys missing or null on the wire are set to nil.
func ToCanonical(wire types.WireRecord, fm FieldMap) (types.Record, error) {
	rec := types.Record{}
	for _, f := range fm {
		v, ok := wire[f.Wire]
		if !ok || v == nil {
			rec.Set(f.Canonical, nil)
			continue
		}

		if f.Kind == RecordList {
			elems, err := recordListToCanonical(v, f)
			if err != nil {
				return nil, err
			}
			rec.Set(f.Canonical, elems)
			continue
		}

		rec.Set(f.Canonical, types.CloneValue(v))
	}
	return rec, nil
}

func recordListToCanonical(v any, f Field) ([]any, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, isvaerr.Mapping("field %s: expected a list, got %T", f.Wire, v)
	}
	out := make([]any, 0, len(list))
	for i, e := range list {
		m, ok := types.AsMap(e)
		if !ok {
			return nil, isvaerr.Mapping("field %s[%d]: expected an object, got %T", f.Wire, i, e)
		}
		elem, err := ToCanonical(types.WireRecord(m), f.Elem)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any(elem))
	}
	return out, nil
}

// ToWire maps a canonical record to a wire payload. Nil or absent canonical
// keys are omitted; the appliance reads omission as "leave unchanged".
func ToWire(rec types.Record, fm FieldMap) (types.WireRecord, error) {
	wire := types.WireRecord{}
	for _, f := range fm {
		if !f.Writable() {
			continue
		}
		v, ok := rec.Get(f.Canonical)
		if !ok || v == nil {
			continue
		}

		if f.Kind == RecordList {
			list, ok := v.([]any)
			if !ok {
				return nil, isvaerr.Validation("field %s: expected a list, got %T", f.Canonical, v)
			}
			out := make([]any, 0, len(list))
			for i, e := range list {
				m, ok := types.AsMap(e)
				if !ok {
					return nil, isvaerr.Validation("field %s[%d]: expected an object, got %T", f.Canonical, i, e)
				}
				elem, err := ToWire(types.Record(m), f.Elem)
				if err != nil {
					return nil, err
				}
				out = append(out, map[string]any(elem))
			}
			wire[f.Wire] = out
			continue
		}

		wire[f.Wire] = types.CloneValue(v)
	}
	return wire, nil
}

// Unwrap returns the object carried by a response. Some endpoints wrap a
// singleton object in a one-element array.
func Unwrap(contents any) (types.WireRecord, error) {
	switch c := contents.(type) {
	case []any:
		if len(c) == 0 {
			return nil, isvaerr.Mapping("expected a single-element list, got an empty list")
		}
		m, ok := types.AsMap(c[0])
		if !ok {
			return nil, isvaerr.Mapping("expected an object in list, got %T", c[0])
		}
		return types.WireRecord(m), nil
	default:
		m, ok := types.AsMap(contents)
		if !ok {
			return nil, isvaerr.Mapping("expected an object, got %T", contents)
		}
		return types.WireRecord(m), nil
	}
}

// Validate rejects desired keys the field map does not declare and list
// fields carrying the wrong shape. All problems are reported together.
func Validate(rec types.Record, fm FieldMap) error {
	var result *multierror.Error
	validateInto(&result, map[string]any(rec), fm, "", "")
	if err := result.ErrorOrNil(); err != nil {
		return isvaerr.ValidationErr(err)
	}
	return nil
}

func validateInto(result **multierror.Error, m map[string]any, fm FieldMap, prefix, display string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		shown := path
		if display != "" {
			shown = display + "." + k
		}

		f, ok := fm.Lookup(path)
		if !ok {
			if nested, isMap := types.AsMap(v); isMap && fm.isGroup(path) {
				validateInto(result, nested, fm, path, shown)
				continue
			}
			*result = multierror.Append(*result, fmt.Errorf("unsupported parameter %s", shown))
			continue
		}
		if v == nil {
			continue
		}

		switch f.Kind {
		case RecordList:
			list, ok := v.([]any)
			if !ok {
				*result = multierror.Append(*result, fmt.Errorf("parameter %s must be a list", shown))
				continue
			}
			for i, e := range list {
				em, ok := types.AsMap(e)
				if !ok {
					*result = multierror.Append(*result, fmt.Errorf("parameter %s[%d] must be an object", shown, i))
					continue
				}
				validateInto(result, em, f.Elem, "", fmt.Sprintf("%s[%d]", shown, i))
			}
		case List:
			if _, ok := v.([]any); !ok {
				if s, isStr := v.(string); !isStr || (s != "" && s != "none") {
					*result = multierror.Append(*result, fmt.Errorf("parameter %s must be a list", shown))
				}
			}
		}
		if f.Bool {
			if _, err := FlattenBoolean(v); err != nil {
				*result = multierror.Append(*result, fmt.Errorf("parameter %s: %w", shown, err))
			}
		}
	}
}

// Normalize returns a copy of a desired record with boolean fields flattened
// to native booleans.
func Normalize(rec types.Record, fm FieldMap) (types.Record, error) {
	out := rec.Clone()
	if out == nil {
		return nil, nil
	}
	for _, f := range fm {
		if !f.Bool {
			continue
		}
		v, ok := out.Get(f.Canonical)
		if !ok || v == nil {
			continue
		}
		b, err := FlattenBoolean(v)
		if err != nil {
			return nil, isvaerr.Validation("parameter %s: %v", f.Canonical, err)
		}
		out.Set(f.Canonical, b)
	}
	return out, nil
}

var (
	truthy = map[string]bool{"yes": true, "on": true, "1": true, "true": true, "y": true, "t": true, "enabled": true}
	falsey = map[string]bool{"no": true, "off": true, "0": true, "false": true, "n": true, "f": true, "disabled": true}
)

// FlattenBoolean accepts the boolean spellings automation callers use
func FlattenBoolean(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		if b == 0 || b == 1 {
			return b == 1, nil
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(b))
		if truthy[s] {
			return true, nil
		}
		if falsey[s] {
			return false, nil
		}
	}
	return false, fmt.Errorf("%v is not a valid boolean", v)
}
