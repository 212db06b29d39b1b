// Package validate checks entity records against the schema catalog.
//
// [Validator.Validate] runs fixed passes over a record and collects every
// finding rather than stopping at the first error:
//
//  1. basic: id, name, type, position and sprite
//  2. common: direction, interactionRadius, cooldownSeconds and other shared fields
//  3. variant: required and typed fields of the record's variant
//  4. rules: variant-specific business rules
//  5. suggestions: non-blocking hints
//
// An unknown type yields a single error on "type"; the variant fields, rules
// and suggestions are then skipped.
// Validation is pure: it never mutates the record, keeps no state between
// calls and reports problems as data, never as errors or panics.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/suggest"
)

const (
	nameMinLen  = 2
	nameMaxLen  = 50
	mapMaxCoord = 2000
	cooldownMax = 3600
	radiusMin   = 16
	radiusMax   = 128
)

var imageSuffixes = []string{".png", ".gif", ".jpg", ".jpeg", ".webp"}

// Validator is safe for concurrent use.
type Validator struct {
	reg     *schema.Registry
	matcher *suggest.Matcher
}

// New returns a validator for the variants described by reg.
func New(reg *schema.Registry) *Validator {
	return &Validator{reg: reg, matcher: suggest.New()}
}

// Validate checks rec and returns all findings. It does not modify rec.
func (v *Validator) Validate(rec record.Record) Result {
	c := &collector{}
	basicPass(rec, c)
	commonPass(rec, c)
	if d, ok := v.variantPass(rec, c); ok {
		rulesFor(d.Variant)(rec, c)
		suggestionPass(d, rec, c)
	}
	return c.result()
}

// Registry returns the catalog the validator checks against.
func (v *Validator) Registry() *schema.Registry { return v.reg }

func basicPass(rec record.Record, c *collector) {
	requireString(rec, c, schema.PathID)

	if name, ok := requireString(rec, c, schema.PathName); ok {
		switch n := utf8.RuneCountInString(strings.TrimSpace(name)); {
		case n < nameMinLen:
			c.structural(schema.PathName, fmt.Sprintf("name must be at least %d characters", nameMinLen))
		case n > nameMaxLen:
			c.warn(schema.PathName, fmt.Sprintf("name is longer than %d characters and may be truncated in game", nameMaxLen))
		}
	}

	requireString(rec, c, schema.PathType)

	pos, hasPos := rec.MustGet(schema.PathPosition)
	switch _, isMap := pos.(map[string]any); {
	case !hasPos || pos == nil:
		c.structural(schema.PathPosition, "position is required")
	case !isMap:
		c.structural(schema.PathPosition, "position must be a mapping with x and y")
	default:
		for _, axis := range []string{schema.PathPositionX, schema.PathPositionY} {
			raw, _ := rec.MustGet(axis)
			n, ok := schema.AsNumber(raw)
			if !ok {
				c.structural(axis, axis+" must be a number")
				continue
			}
			if n < 0 || n > mapMaxCoord {
				c.warn(axis, fmt.Sprintf("%s is outside the usual map bounds [0, %d]", axis, mapMaxCoord))
			}
		}
	}

	if sprite, ok := requireString(rec, c, schema.PathSprite); ok {
		if strings.ContainsFunc(sprite, unicode.IsSpace) {
			c.structural(schema.PathSprite, "sprite must not contain whitespace")
		}
		if !hasImageSuffix(sprite) {
			c.warn(schema.PathSprite, "sprite should be an image file ("+strings.Join(imageSuffixes, ", ")+")")
		}
	}
}

func commonPass(rec record.Record, c *collector) {
	if raw, ok := present(rec, schema.PathDirection); ok {
		if s, isStr := raw.(string); !isStr || !slices.Contains(schema.Directions, s) {
			c.structural(schema.PathDirection, "direction must be one of "+strings.Join(schema.Directions, ", "))
		}
	}

	if raw, ok := present(rec, schema.PathInteractionRadius); ok {
		if n, isNum := schema.AsNumber(raw); !isNum || n < radiusMin || n > radiusMax {
			c.structural(schema.PathInteractionRadius,
				fmt.Sprintf("interactionRadius must be a number in [%d, %d]", radiusMin, radiusMax))
		}
	}

	if raw, ok := present(rec, schema.PathCooldownSeconds); ok {
		n, isNum := schema.AsNumber(raw)
		switch {
		case !isNum || n < 0:
			c.structural(schema.PathCooldownSeconds, "cooldownSeconds must be a number >= 0")
		case n > cooldownMax:
			c.warn(schema.PathCooldownSeconds, fmt.Sprintf("cooldownSeconds above %d makes the NPC feel unresponsive", cooldownMax))
		}
	}

	if raw, ok := present(rec, schema.PathEnabled); ok {
		if _, isBool := raw.(bool); !isBool {
			c.structural(schema.PathEnabled, "enabled must be a boolean")
		}
	}

	if raw, ok := present(rec, schema.PathDescription); ok {
		if _, isStr := raw.(string); !isStr {
			c.structural(schema.PathDescription, "description must be a string")
		}
	}
}

// variantPass resolves the record's variant and checks its fields. It reports
// false when no variant specific passes should follow.
func (v *Validator) variantPass(rec record.Record, c *collector) (*schema.Descriptor, bool) {
	raw, _ := rec.MustGet(schema.PathType)
	typ, _ := raw.(string)
	if strings.TrimSpace(typ) == "" {
		// Already reported by the basic pass.
		return nil, false
	}
	variant, known := schema.ParseVariant(typ)
	d, described := v.reg.Describe(variant)
	if !known || !described {
		candidates := make([]string, 0, len(v.reg.Variants()))
		for _, vv := range v.reg.Variants() {
			candidates = append(candidates, string(vv))
		}
		c.add(SeverityError, CodeUnknownVariant, schema.PathType,
			fmt.Sprintf("unknown entity type %q%s", typ, v.matcher.Hint(typ, candidates)))
		return nil, false
	}

	checkBlocks(d, rec, c)

	for _, f := range d.VariantFields() {
		val, ok := present(rec, f.Path)
		required := d.IsRequired(f.Path)
		if !ok {
			if required {
				c.structural(f.Path, missingMessage(f))
			}
			continue
		}
		if !f.Kind.Matches(val) {
			c.structural(f.Path, fmt.Sprintf("%s must be a %s", f.Path, f.Kind))
			continue
		}
		switch f.Kind {
		case schema.KindString:
			if required && strings.TrimSpace(val.(string)) == "" {
				c.structural(f.Path, missingMessage(f))
			}
		case schema.KindSelection:
			s := val.(string)
			switch {
			case s == "":
				if required {
					c.structural(f.Path, missingMessage(f))
				}
			case !f.HasOption(s):
				c.structural(f.Path, fmt.Sprintf("%s must be one of %s%s",
					f.Path, strings.Join(f.Options, ", "), v.matcher.Hint(s, f.Options)))
			}
		case schema.KindNumber:
			n, _ := schema.AsNumber(val)
			if !f.InRange(n) {
				c.structural(f.Path, rangeMessage(f))
			}
		case schema.KindSequence:
			if required && len(val.([]any)) == 0 {
				c.structural(f.Path, missingMessage(f))
			}
		}
	}
	return d, true
}

// checkBlocks reports configuration blocks that exist but are not mappings,
// which would otherwise hide every nested field.
func checkBlocks(d *schema.Descriptor, rec record.Record, c *collector) {
	seen := make(map[string]bool)
	for _, f := range d.VariantFields() {
		segs := strings.Split(f.Path, ".")
		for i := 1; i < len(segs); i++ {
			block := strings.Join(segs[:i], ".")
			if seen[block] {
				continue
			}
			seen[block] = true
			if raw, ok := present(rec, block); ok {
				if _, isMap := raw.(map[string]any); !isMap {
					c.structural(block, block+" must be a mapping")
				}
			}
		}
	}
}

func suggestionPass(d *schema.Descriptor, rec record.Record, c *collector) {
	if isEmpty(rec, schema.PathDescription) {
		c.suggest(schema.PathDescription, "add a description so other designers know what this NPC is for")
	}
	for _, p := range d.Suggested {
		if isEmpty(rec, p) {
			label := p
			if f, ok := d.Field(p); ok && f.Label != "" {
				label = f.Label
			}
			c.suggest(p, fmt.Sprintf("consider setting %s (%s)", strings.ToLower(label), p))
		}
	}
}

// requireString reports a structural error unless path holds a non-blank
// string, returning the string when it does.
func requireString(rec record.Record, c *collector, path string) (string, bool) {
	raw, ok := present(rec, path)
	if !ok {
		c.structural(path, path+" is required")
		return "", false
	}
	s, isStr := raw.(string)
	if !isStr {
		c.structural(path, path+" must be a string")
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		c.structural(path, path+" is required")
		return "", false
	}
	return s, true
}

// present returns the value at path, treating explicit nulls as absent.
func present(rec record.Record, path string) (any, bool) {
	v, ok := rec.MustGet(path)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func isEmpty(rec record.Record, path string) bool {
	v, ok := present(rec, path)
	if !ok {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func missingMessage(f schema.Field) string {
	if f.Kind == schema.KindSequence {
		return f.Path + " needs at least one entry"
	}
	return f.Path + " is required"
}

func rangeMessage(f schema.Field) string {
	if f.Min != nil && f.Max != nil {
		return fmt.Sprintf("%s must be in %s", f.Path, f.RangeString())
	}
	return fmt.Sprintf("%s must be %s", f.Path, f.RangeString())
}

func hasImageSuffix(s string) bool {
	lower := strings.ToLower(s)
	for _, suf := range imageSuffixes {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	return false
}
