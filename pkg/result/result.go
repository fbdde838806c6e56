package result

import (
	"github.com/cuemby/isvactl/pkg/types"
)

// Assemble builds the output contract of one invocation. The diff is always
// present and warnings is never nil, so callers can serialize the result
// without special cases.
func Assemble(changed bool, before, after types.Record, warnings []string) types.Result {
	if before == nil {
		before = types.Record{}
	}
	if after == nil {
		after = types.Record{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return types.Result{
		Changed:  changed,
		Diff:     types.Diff{Before: before, After: after},
		Warnings: warnings,
	}
}

// FromDiff is Assemble for a computed diff
func FromDiff(changed bool, d types.Diff, warnings []string) types.Result {
	return Assemble(changed, d.Before, d.After, warnings)
}

// Unchanged is the result of an invocation that found nothing to do
func Unchanged(warnings ...string) types.Result {
	return Assemble(false, nil, nil, warnings)
}

// Gathered is the result of a read. It never reports a change.
func Gathered(current any) types.Result {
	r := Unchanged()
	r.Gathered = current
	return r
}

// ExtractWarnings returns the "warning" field of an appliance response. The
// appliance sends either a single string or a list of strings.
func ExtractWarnings(contents any) []string {
	m, ok := types.AsMap(contents)
	if !ok {
		return nil
	}
	switch w := m["warning"].(type) {
	case string:
		if w == "" {
			return nil
		}
		return []string{w}
	case []any:
		var out []string
		for _, e := range w {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return w
	}
	return nil
}
