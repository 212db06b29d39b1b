package schema

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Condition makes a field visible only while another field holds a value.
type Condition struct {
	// Path is the dotted path of the controlling field.
	Path string `yaml:"path" json:"path"`

	// Equals is the value the controlling field must hold.
	Equals any `yaml:"equals" json:"equals"`
}

// Field is the schema of a single addressable value in an entity record.
type Field struct {
	// Path is the dotted address of the field (e.g. "shopConfig.currency").
	Path string `yaml:"path" json:"path"`

	Kind  Kind   `yaml:"kind" json:"kind"`
	Label string `yaml:"label" json:"label"`
	Help  string `yaml:"help,omitempty" json:"help,omitempty"`

	// Default is the initial value offered by forms. Nil means no default.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Options is the closed value set for [KindSelection] fields.
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`

	// Min and Max bound [KindNumber] fields when non-nil.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// VisibleWhen hides the field from forms unless the condition holds.
	VisibleWhen *Condition `yaml:"visibleWhen,omitempty" json:"visibleWhen,omitempty"`
}

// HasOption reports whether s is one of the field's selection options.
func (f Field) HasOption(s string) bool {
	return slices.Contains(f.Options, s)
}

// InRange reports whether n satisfies the field's numeric bounds. NaN is
// never in range.
func (f Field) InRange(n float64) bool {
	if math.IsNaN(n) {
		return false
	}
	if f.Min != nil && n < *f.Min {
		return false
	}
	if f.Max != nil && n > *f.Max {
		return false
	}
	return true
}

// RangeString renders the numeric bounds for messages, e.g. "[16, 128]".
func (f Field) RangeString() string {
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("[%s, %s]", formatNumber(*f.Min), formatNumber(*f.Max))
	case f.Min != nil:
		return ">= " + formatNumber(*f.Min)
	case f.Max != nil:
		return "<= " + formatNumber(*f.Max)
	}
	return "any"
}

// Section groups fields for display.
type Section struct {
	Name   string   `yaml:"name" json:"name"`
	Label  string   `yaml:"label" json:"label"`
	Fields []string `yaml:"fields" json:"fields"`
}

// Descriptor is the full schema of one variant.
type Descriptor struct {
	Variant     Variant
	Label       string
	Description string

	// Sections lists display groups in order, universal sections first.
	Sections []Section

	// Fields maps every addressable path (universal and variant-specific) to
	// its schema.
	Fields map[string]Field

	// Required lists the variant-specific paths that must be populated.
	Required []string

	// StepRequired lists the configuration-block paths demanded before the
	// variant configuration step of the wizard may be left.
	StepRequired []string

	// Suggested lists optional fields worth recommending when empty.
	Suggested []string

	// Template is the default variant-specific configuration. Never mutate
	// it; copy it first.
	Template map[string]any
}

// Field returns the schema for path.
func (d *Descriptor) Field(path string) (Field, bool) {
	f, ok := d.Fields[path]
	return f, ok
}

// IsRequired reports whether path is in the variant's required list.
func (d *Descriptor) IsRequired(path string) bool {
	return slices.Contains(d.Required, path)
}

// VariantFields returns the variant-specific fields in section order.
func (d *Descriptor) VariantFields() []Field {
	var out []Field
	for _, sec := range d.Sections {
		for _, p := range sec.Fields {
			if IsUniversal(p) {
				continue
			}
			out = append(out, d.Fields[p])
		}
	}
	return out
}

// validate checks internal consistency of the descriptor.
func (d *Descriptor) validate() error {
	var errs []error
	seen := make(map[string]bool, len(d.Fields))
	for _, sec := range d.Sections {
		for _, p := range sec.Fields {
			if _, ok := d.Fields[p]; !ok {
				errs = append(errs, fmt.Errorf("%s: section %q lists unknown field %q", d.Variant, sec.Name, p))
			}
			if seen[p] {
				errs = append(errs, fmt.Errorf("%s: field %q appears in more than one section", d.Variant, p))
			}
			seen[p] = true
		}
	}
	for p, f := range d.Fields {
		if p != f.Path {
			errs = append(errs, fmt.Errorf("%s: field key %q does not match path %q", d.Variant, p, f.Path))
		}
		if f.Kind == KindSelection && len(f.Options) == 0 {
			errs = append(errs, fmt.Errorf("%s: selection field %q has no options", d.Variant, p))
		}
		if strings.Contains(p, "..") || strings.HasPrefix(p, ".") || strings.HasSuffix(p, ".") {
			errs = append(errs, fmt.Errorf("%s: field path %q is malformed", d.Variant, p))
		}
		if !seen[p] {
			errs = append(errs, fmt.Errorf("%s: field %q is not placed in any section", d.Variant, p))
		}
	}
	for _, list := range [][]string{d.Required, d.StepRequired, d.Suggested} {
		for _, p := range list {
			if _, ok := d.Fields[p]; !ok {
				errs = append(errs, fmt.Errorf("%s: %q is listed but has no field schema", d.Variant, p))
			}
		}
	}
	return errors.Join(errs...)
}

// Registry is a read-only lookup from variant to descriptor.
type Registry struct {
	order []Variant
	descs map[Variant]*Descriptor
}

// NewRegistry builds a registry from descs, rejecting duplicates, unknown
// variants, and internally inconsistent descriptors.
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{descs: make(map[Variant]*Descriptor, len(descs))}
	var errs []error
	for _, d := range descs {
		if !d.Variant.IsValid() {
			errs = append(errs, fmt.Errorf("unknown variant %q", d.Variant))
			continue
		}
		if _, dup := r.descs[d.Variant]; dup {
			errs = append(errs, fmt.Errorf("variant %q registered twice", d.Variant))
			continue
		}
		if err := d.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		r.descs[d.Variant] = d
		r.order = append(r.order, d.Variant)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("schema: build registry: %w", err)
	}
	return r, nil
}

// Describe returns the descriptor for v. The boolean is false for variants
// the registry does not know; callers treat that as a validation finding.
func (r *Registry) Describe(v Variant) (*Descriptor, bool) {
	d, ok := r.descs[v]
	return d, ok
}

// Variants lists the registered variants in registration order.
func (r *Registry) Variants() []Variant {
	return slices.Clone(r.order)
}

// Labels returns variant ids and labels, used for "did you mean" hints.
func (r *Registry) Labels() map[Variant]string {
	out := make(map[Variant]string, len(r.descs))
	for v, d := range r.descs {
		out[v] = d.Label
	}
	return out
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
