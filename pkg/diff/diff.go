package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/types"
)

// Compute returns the keys of want that differ from have, with the current
// value in Before and the desired value in After. Only comparable fields of
// the field map that are set in want take part; everything else is ignored.
func Compute(have, want types.Record, fm mapper.FieldMap) types.Diff {
	d := types.Diff{Before: types.Record{}, After: types.Record{}}
	for _, f := range fm {
		if !f.Comparable() {
			continue
		}
		w, ok := want.Get(f.Canonical)
		if !ok || w == nil {
			continue
		}
		h, _ := have.Get(f.Canonical)

		after, changed := compareField(f, h, w)
		if !changed {
			continue
		}
		d.Before.Set(f.Canonical, types.CloneValue(h))
		d.After.Set(f.Canonical, types.CloneValue(after))
	}
	return d
}

// compareField returns the value to write and whether a write is needed
func compareField(f mapper.Field, have, want any) (any, bool) {
	switch f.Kind {
	case mapper.List:
		return compareSimpleList(have, want)
	case mapper.RecordList:
		return compareRecordList(have, want)
	case mapper.Object:
		return compareObject(have, want)
	default:
		if isClear(want) && have == nil {
			return nil, false
		}
		if ScalarEqual(have, want) {
			return nil, false
		}
		return want, true
	}
}

// isClear reports whether a desired value means "explicitly clear"
func isClear(v any) bool {
	s, ok := v.(string)
	return ok && (s == "" || s == "none")
}

func compareSimpleList(have, want any) (any, bool) {
	if isClear(want) {
		if have == nil {
			return nil, false
		}
		if l, ok := have.([]any); ok && len(l) == 0 {
			return nil, false
		}
		return []any{}, true
	}
	wl, _ := want.([]any)
	if have == nil {
		if len(wl) == 0 {
			return nil, false
		}
		return want, true
	}
	hl, ok := have.([]any)
	if !ok {
		return want, true
	}

	ws := mapset.NewSet[string]()
	for _, v := range wl {
		ws.Add(scalarKey(v))
	}
	hs := mapset.NewSet[string]()
	for _, v := range hl {
		hs.Add(scalarKey(v))
	}
	if ws.Equal(hs) {
		return nil, false
	}
	return want, true
}

func compareRecordList(have, want any) (any, bool) {
	wl, _ := want.([]any)
	if have == nil {
		if len(wl) == 0 {
			return nil, false
		}
		return want, true
	}
	hl, ok := have.([]any)
	if !ok {
		return want, true
	}

	ws := mapset.NewSet[string]()
	for _, e := range wl {
		ws.Add(elementKey(e))
	}
	hs := mapset.NewSet[string]()
	for _, e := range hl {
		hs.Add(elementKey(e))
	}
	if ws.Equal(hs) {
		return nil, false
	}
	return want, true
}

func compareObject(have, want any) (any, bool) {
	wm, _ := types.AsMap(want)
	if have == nil {
		if len(wm) == 0 {
			return nil, false
		}
		return want, true
	}
	hm, ok := types.AsMap(have)
	if !ok {
		return want, true
	}
	if pairSet(wm).Equal(pairSet(hm)) {
		return nil, false
	}
	return want, true
}

// pairSet flattens an object into (key, stringified value) pairs. Nil values
// carry no information and are dropped on both sides.
func pairSet(m map[string]any) mapset.Set[string] {
	s := mapset.NewSet[string]()
	for k, v := range m {
		if v == nil {
			continue
		}
		s.Add(k + "=" + Stringify(v))
	}
	return s
}

// elementKey is the order-independent identity of one record list element
func elementKey(e any) string {
	m, ok := types.AsMap(e)
	if !ok {
		return Stringify(e)
	}
	pairs := pairSet(m).ToSlice()
	sort.Strings(pairs)
	return strings.Join(pairs, "\x00")
}

// ScalarEqual compares two scalars by value. Numbers compare equal across
// int, float and json.Number representations.
func ScalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	na, aNum := numberString(a)
	nb, bNum := numberString(b)
	if aNum || bNum {
		return aNum && bNum && na == nb
	}
	return reflect.DeepEqual(a, b)
}

func scalarKey(v any) string {
	if n, ok := numberString(v); ok {
		return "n:" + n
	}
	switch s := v.(type) {
	case string:
		return "s:" + s
	case bool:
		return "b:" + strconv.FormatBool(s)
	}
	return "o:" + Stringify(v)
}

// Stringify renders a value for loose comparison, so 443 and "443" agree
func Stringify(v any) string {
	if n, ok := numberString(v); ok {
		return n
	}
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case []any:
		parts := make([]string, len(s))
		for i, e := range s {
			parts[i] = Stringify(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	if m, ok := types.AsMap(v); ok {
		pairs := pairSet(m).ToSlice()
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ",") + "}"
	}
	return fmt.Sprintf("%v", v)
}

// numberString normalises numeric values to a canonical decimal string
func numberString(v any) (string, bool) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		if f, err := n.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return n.String(), true
	}
	return "", false
}
