package blob

import (
	"strconv"
	"strings"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/types"
)

// Entry types reported by the appliance listings
const (
	TypeFile      = "File"
	TypeDirectory = "Directory"
)

// Entry is one file or directory of an appliance listing
type Entry struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	SHA256   string  `json:"sha256,omitempty"`
	Size     int64   `json:"size,omitempty"`
	Children []Entry `json:"children,omitempty"`
}

// IsDir reports whether the entry is a directory
func (e Entry) IsDir() bool {
	return strings.EqualFold(e.Type, TypeDirectory) || len(e.Children) > 0
}

// ParseListing decodes a listing response. The appliance answers either a
// list of entries or a single directory object carrying them.
func ParseListing(contents any) ([]Entry, error) {
	switch c := contents.(type) {
	case []any:
		return parseEntries(c)
	default:
		m, ok := types.AsMap(contents)
		if !ok {
			return nil, isvaerr.Mapping("listing: expected a list or an object, got %T", contents)
		}
		if children, ok := childList(m); ok {
			return parseEntries(children)
		}
		e, err := parseEntry(m)
		if err != nil {
			return nil, err
		}
		return []Entry{e}, nil
	}
}

func parseEntries(list []any) ([]Entry, error) {
	out := make([]Entry, 0, len(list))
	for i, v := range list {
		m, ok := types.AsMap(v)
		if !ok {
			return nil, isvaerr.Mapping("listing[%d]: expected an object, got %T", i, v)
		}
		e, err := parseEntry(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseEntry(m map[string]any) (Entry, error) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return Entry{}, isvaerr.Mapping("listing entry without a name: %v", m)
	}
	e := Entry{Name: name}
	e.Type, _ = m["type"].(string)
	e.SHA256, _ = m["sha256"].(string)
	e.Size = sizeOf(m["size"])

	if children, ok := childList(m); ok {
		parsed, err := parseEntries(children)
		if err != nil {
			return Entry{}, err
		}
		e.Children = parsed
	}
	return e, nil
}

func childList(m map[string]any) ([]any, bool) {
	for _, key := range []string{"children", "contents"} {
		if list, ok := m[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func sizeOf(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	case interface{ Int64() (int64, error) }:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// Index maps slash separated paths ("fixpacks/fp1.fixpack") to entries
type Index map[string]Entry

// BuildIndex flattens entries recursively under prefix
func BuildIndex(prefix string, entries []Entry) Index {
	idx := Index{}
	idx.add(strings.Trim(prefix, "/"), entries)
	return idx
}

func (idx Index) add(prefix string, entries []Entry) {
	for _, e := range entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		idx[p] = e
		if len(e.Children) > 0 {
			idx.add(p, e.Children)
		}
	}
}

// Lookup finds an entry, ignoring leading and trailing slashes
func (idx Index) Lookup(path string) (Entry, bool) {
	e, ok := idx[strings.Trim(path, "/")]
	return e, ok
}
