// Package form derives the dynamic editing form of a draft from its variant
// descriptor and turns raw user input into typed field values.
//
// Nothing here renders markup. [Build] produces a view model that a UI (or
// the HTTP API) can present; [Editor] applies [EditCommand]s to a draft and
// reports every change to an injected listener, which is how the wizard
// re-runs validation after each edit.
package form

import (
	"reflect"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
)

// FieldView is one field of a built form.
type FieldView struct {
	schema.Field

	// Value is the current draft value. Sequence fields are never nil.
	Value any `json:"value"`

	// Set is false when the draft holds no value and Value shows nothing.
	Set bool `json:"set"`

	Required bool `json:"required"`

	// Visible is false when the field's visibility condition does not hold.
	Visible bool `json:"visible"`

	// Findings holds the validation findings attached to this path.
	Findings []validate.Finding `json:"findings,omitempty"`
}

// SectionView is one display group of a built form.
type SectionView struct {
	Name   string      `json:"name"`
	Label  string      `json:"label"`
	Fields []FieldView `json:"fields"`
}

// Form is the view model of a draft.
type Form struct {
	Variant  schema.Variant  `json:"variant"`
	Label    string          `json:"label"`
	Sections []SectionView   `json:"sections"`
	Result   validate.Result `json:"result"`
}

// Build lays out draft according to d. res annotates fields with findings;
// pass the result of validating draft.
func Build(d *schema.Descriptor, draft record.Record, res validate.Result) Form {
	f := Form{Variant: d.Variant, Label: d.Label, Result: res}
	for _, sec := range d.Sections {
		sv := SectionView{Name: sec.Name, Label: sec.Label, Fields: make([]FieldView, 0, len(sec.Fields))}
		for _, p := range sec.Fields {
			fd := d.Fields[p]
			val, ok := draft.MustGet(p)
			fv := FieldView{
				Field:    fd,
				Value:    val,
				Set:      ok && val != nil,
				Required: d.IsRequired(p),
				Visible:  Visible(fd, draft),
				Findings: res.ForField(p),
			}
			if fd.Kind == schema.KindSequence {
				fv.Value = draft.Sequence(p)
			}
			sv.Fields = append(sv.Fields, fv)
		}
		f.Sections = append(f.Sections, sv)
	}
	return f
}

// Visible reports whether f should be shown for draft.
func Visible(f schema.Field, draft record.Record) bool {
	if f.VisibleWhen == nil {
		return true
	}
	v, _ := draft.MustGet(f.VisibleWhen.Path)
	return reflect.DeepEqual(record.Normalize(v), record.Normalize(f.VisibleWhen.Equals))
}

// EnsureSequences writes an empty sequence at every sequence field of d that
// draft lacks, so that forms and validation never see an absent list.
func EnsureSequences(d *schema.Descriptor, draft record.Record) {
	for _, fd := range d.VariantFields() {
		if fd.Kind != schema.KindSequence {
			continue
		}
		if v, ok := draft.MustGet(fd.Path); !ok || v == nil {
			draft.MustSet(fd.Path, []any{})
		}
	}
}
