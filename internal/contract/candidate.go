package contract

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Candidate is the working structured result of one run. It is exclusively
// owned by that run and mutated in place between evaluation rounds.
type Candidate map[string]any

// ParseCandidate decodes a JSON document into a Candidate.
func ParseCandidate(raw json.RawMessage) (Candidate, error) {
	var c Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode candidate: %w", err)
	}
	return c, nil
}

// Clone returns a deep copy of the candidate.
func (c Candidate) Clone() Candidate {
	if c == nil {
		return nil
	}
	return deepCopyMap(c)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

// GetPath returns the value at a dot-path, if present.
func (c Candidate) GetPath(path string) (any, bool) {
	segments := strings.Split(path, ".")
	var cur any = map[string]any(c)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath replaces the whole subtree at a dot-path, creating intermediate
// objects as needed.
func (c Candidate) SetPath(path string, value any) {
	segments := strings.Split(path, ".")
	m := map[string]any(c)
	for _, seg := range segments[:len(segments)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[seg] = next
		}
		m = next
	}
	m[segments[len(segments)-1]] = value
}

// Prune returns a copy of the candidate containing only fields declared by
// the contract, recursively, so the result honors the contract's shape.
func (c Candidate) Prune(ct *Contract) Candidate {
	return Candidate(pruneMap(c, ct.Fields))
}

func pruneMap(m map[string]any, fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := m[f.Name]
		if !ok {
			continue
		}
		out[f.Name] = pruneValue(v, f)
	}
	return out
}

func pruneValue(v any, f Field) any {
	switch f.Kind {
	case KindObject:
		if sub, ok := v.(map[string]any); ok {
			return pruneMap(sub, f.Fields)
		}
	case KindArray:
		if list, ok := v.([]any); ok && f.Items != nil {
			out := make([]any, len(list))
			for i, e := range list {
				out[i] = pruneValue(e, *f.Items)
			}
			return out
		}
	}
	return deepCopyValue(v)
}

// DiffPaths returns the dot-paths at which two candidates differ, descending
// into nested objects so the narrowest differing subtree is reported. Array
// and scalar differences are reported at the field holding them.
func DiffPaths(before, after Candidate) []string {
	paths := make(map[string]struct{})
	diffMaps(before, after, "", paths)
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func diffMaps(a, b map[string]any, prefix string, out map[string]struct{}) {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range keys {
		path := joinPath(prefix, k)
		av, aok := a[k]
		bv, bok := b[k]
		if !aok || !bok {
			out[path] = struct{}{}
			continue
		}
		am, aIsMap := av.(map[string]any)
		bm, bIsMap := bv.(map[string]any)
		if aIsMap && bIsMap {
			diffMaps(am, bm, path, out)
			continue
		}
		if !reflect.DeepEqual(av, bv) {
			out[path] = struct{}{}
		}
	}
}
