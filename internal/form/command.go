package form

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/suggest"
)

var (
	// ErrInvalidInput is returned when raw input cannot be parsed into the
	// field's kind, or names a field the variant does not have.
	ErrInvalidInput = errors.New("form: invalid input")

	// ErrImmutableField is returned for edits of id or type.
	ErrImmutableField = errors.New("form: field cannot be edited")
)

// EditCommand is a single inline field edit: the raw text a user typed for
// the field at Path.
type EditCommand struct {
	Path  string `json:"path"`
	Input string `json:"input"`
}

var matcher = suggest.New()

// immutable reports whether path is id or type, or lies beneath either.
func immutable(path string) bool {
	segs, err := record.SplitPath(path)
	if err != nil || len(segs) == 0 {
		return false
	}
	return segs[0] == schema.PathID || segs[0] == schema.PathType
}

// finite reports whether v holds no NaN or infinite number at any depth.
func finite(v any) bool {
	switch t := v.(type) {
	case float64:
		return !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		return finite(float64(t))
	case map[string]any:
		for _, e := range t {
			if !finite(e) {
				return false
			}
		}
	case record.Record:
		return finite(map[string]any(t))
	case []any:
		for _, e := range t {
			if !finite(e) {
				return false
			}
		}
	}
	return true
}

// Parse converts cmd.Input into a value of the kind declared for cmd.Path in
// d. A nil value with a nil error means the field should be cleared.
//
// Parsing rules by kind:
//   - string: taken verbatim
//   - number: decimal float; empty clears
//   - boolean: true/false, yes/no, on/off, 1/0
//   - selection: one of the options, case-insensitive; empty clears
//   - sequence: a YAML/JSON flow list ("[a, b]") or comma-separated words
//   - mapping: a YAML/JSON mapping
func Parse(d *schema.Descriptor, cmd EditCommand) (any, error) {
	if _, err := record.SplitPath(cmd.Path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if immutable(cmd.Path) {
		return nil, fmt.Errorf("%w: %s", ErrImmutableField, cmd.Path)
	}
	f, ok := d.Field(cmd.Path)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidInput, d.Variant, cmd.Path)
	}

	in := strings.TrimSpace(cmd.Input)
	switch f.Kind {
	case schema.KindString:
		return cmd.Input, nil
	case schema.KindNumber:
		if in == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(in, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: %s must be a number, got %q", ErrInvalidInput, f.Path, cmd.Input)
		}
		return n, nil
	case schema.KindBoolean:
		b, err := parseBool(in)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be yes or no, got %q", ErrInvalidInput, f.Path, cmd.Input)
		}
		return b, nil
	case schema.KindSelection:
		if in == "" {
			return nil, nil
		}
		for _, o := range f.Options {
			if strings.EqualFold(o, in) {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%w: %s must be one of %s%s", ErrInvalidInput,
			f.Path, strings.Join(f.Options, ", "), matcher.Hint(in, f.Options))
	case schema.KindSequence:
		return parseSequence(f.Path, in)
	case schema.KindMapping:
		if in == "" {
			return map[string]any{}, nil
		}
		var m map[string]any
		if err := yaml.Unmarshal([]byte(in), &m); err != nil {
			return nil, fmt.Errorf("%w: %s must be a mapping: %w", ErrInvalidInput, f.Path, err)
		}
		return record.Normalize(m), nil
	}
	return nil, fmt.Errorf("%w: %s has unsupported kind %s", ErrInvalidInput, f.Path, f.Kind)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0":
		return false, nil
	}
	return false, errors.New("not a boolean")
}

func parseSequence(path, in string) ([]any, error) {
	if in == "" {
		return []any{}, nil
	}
	if strings.HasPrefix(in, "[") {
		var seq []any
		if err := yaml.Unmarshal([]byte(in), &seq); err != nil {
			return nil, fmt.Errorf("%w: %s must be a list: %w", ErrInvalidInput, path, err)
		}
		if seq == nil {
			seq = []any{}
		}
		return record.Normalize(seq).([]any), nil
	}
	var out []any
	for part := range strings.SplitSeq(in, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}
