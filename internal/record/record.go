// Package record holds the in-memory entity record and the dotted-path
// resolver used to read and write its nested fields.
//
// A [Record] only ever holds JSON-shaped values: string, float64, bool, nil,
// []any and map[string]any. [Normalize] converts anything else (ints, typed
// slices from a decoder, nested Records) at package boundaries so that
// comparisons and round trips through storage remain exact.
package record

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrMalformedPath is returned when a field path is empty or contains an
// empty segment. It signals a caller bug, never an absent field.
var ErrMalformedPath = errors.New("record: malformed field path")

// Record is a single entity configuration.
type Record map[string]any

// SplitPath splits a dotted path into its segments.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	segs := strings.Split(path, ".")
	for i, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment at position %d", ErrMalformedPath, path, i)
		}
	}
	return segs, nil
}

// Get resolves path. It returns ok=false, and no error, as soon as a segment
// is missing or an intermediate value is not a mapping.
func (r Record) Get(path string) (value any, ok bool, err error) {
	segs, err := SplitPath(path)
	if err != nil {
		return nil, false, err
	}
	var cur any = map[string]any(r)
	for _, seg := range segs {
		m, isMap := asMap(cur)
		if !isMap {
			return nil, false, nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

// MustGet is [Record.Get] for paths known to be well formed, such as those in
// the schema catalog. It panics on a malformed path.
func (r Record) MustGet(path string) (any, bool) {
	v, ok, err := r.Get(path)
	if err != nil {
		panic(err)
	}
	return v, ok
}

// Set assigns value at path, creating intermediate mappings as needed. An
// intermediate value that is not a mapping is replaced by one.
func (r Record) Set(path string, value any) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	if r == nil {
		return errors.New("record: set on nil record")
	}
	cur := map[string]any(r)
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = Normalize(value)
	return nil
}

// MustSet is [Record.Set] for well-formed paths. It panics on a malformed path.
func (r Record) MustSet(path string, value any) {
	if err := r.Set(path, value); err != nil {
		panic(err)
	}
}

// Delete removes the value at path. Deleting an absent path is a no-op.
func (r Record) Delete(path string) error {
	segs, err := SplitPath(path)
	if err != nil {
		return err
	}
	cur := map[string]any(r)
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			return nil
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
	return nil
}

// Sequence returns the sequence at path. A missing value, or one that is not
// a sequence, reads as empty.
func (r Record) Sequence(path string) []any {
	v, ok := r.MustGet(path)
	if !ok {
		return []any{}
	}
	seq, ok := v.([]any)
	if !ok {
		return []any{}
	}
	return seq
}

// StringAt returns the string at path, or "" when absent or not a string.
func (r Record) StringAt(path string) string {
	v, _ := r.MustGet(path)
	s, _ := v.(string)
	return s
}

// ID returns the record id.
func (r Record) ID() string { return r.StringAt("id") }

// Name returns the display name.
func (r Record) Name() string { return r.StringAt("name") }

// Type returns the raw variant discriminator.
func (r Record) Type() string { return r.StringAt("type") }

// Clone returns a deep copy of r sharing no nested references.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

// Equal reports whether a and b hold the same normalised values.
func Equal(a, b Record) bool {
	return reflect.DeepEqual(Normalize(map[string]any(a)), Normalize(map[string]any(b)))
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Record:
		return map[string]any(m), true
	}
	return nil, false
}
