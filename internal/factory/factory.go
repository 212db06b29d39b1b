// Package factory creates new entity drafts from the schema catalog and
// duplicates existing records.
//
// Every record returned by a [Factory] is a fresh deep copy: mutating it never
// reaches the catalog templates or the source record.
package factory

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
)

// DuplicateOffset is added to both position axes of a duplicated entity so
// the copy is not rendered on top of the original.
const DuplicateOffset = 32.0

// CopySuffix is appended to the name of a duplicated entity.
const CopySuffix = " (Copy)"

// IDPrefix prefixes every generated entity id.
const IDPrefix = "npc_"

// ErrUnknownVariant is returned when a draft is requested for a variant the
// registry does not describe.
var ErrUnknownVariant = errors.New("factory: unknown variant")

// preservedOnVariantChange lists the universal fields kept when a draft
// switches variant.
var preservedOnVariantChange = []string{
	schema.PathID, schema.PathName, schema.PathSprite, schema.PathPosition,
	schema.PathDirection, schema.PathDescription, schema.PathInteractionRadius,
	schema.PathCooldownSeconds, schema.PathEnabled,
}

// Option configures a [Factory].
type Option func(*Factory)

// WithIDFunc overrides id generation, mainly for deterministic tests.
func WithIDFunc(fn func() string) Option {
	return func(f *Factory) {
		if fn != nil {
			f.newID = fn
		}
	}
}

// Factory allocates drafts. It is safe for concurrent use if the id function
// is.
type Factory struct {
	reg   *schema.Registry
	newID func() string
}

// New returns a factory backed by reg.
func New(reg *schema.Registry, opts ...Option) *Factory {
	f := &Factory{reg: reg, newID: NewID}
	for _, o := range opts {
		o(f)
	}
	return f
}

// NewID returns a fresh entity id.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// Blank returns a draft carrying only an id and the universal defaults. The
// variant is chosen later with [Factory.ApplyVariant].
func (f *Factory) Blank() record.Record {
	rec := record.Record(schema.UniversalTemplate())
	rec[schema.PathID] = f.newID()
	return rec
}

// CreateDraft returns a new draft of variant v with a fresh id, the universal
// defaults and a deep copy of the variant template.
func (f *Factory) CreateDraft(v schema.Variant) (record.Record, error) {
	return f.ApplyVariant(f.Blank(), v)
}

// ApplyVariant returns a copy of draft switched to variant v. Universal fields
// (id, name, sprite, position, ...) are carried over; every variant-specific
// value is replaced by v's template.
func (f *Factory) ApplyVariant(draft record.Record, v schema.Variant) (record.Record, error) {
	d, ok := f.reg.Describe(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	out := record.Record(schema.UniversalTemplate())
	for k, val := range record.Clone(d.Template).(map[string]any) {
		out[k] = val
	}
	for _, p := range preservedOnVariantChange {
		if val, ok := draft[p]; ok {
			out[p] = record.Clone(val)
		}
	}
	if out.ID() == "" {
		out[schema.PathID] = f.newID()
	}
	out[schema.PathType] = string(v)
	return record.NormalizeRecord(out), nil
}

// Duplicate returns a deep copy of src with a new id, a name marked as a copy
// and the position shifted by [DuplicateOffset] on both axes.
func (f *Factory) Duplicate(src record.Record) record.Record {
	out := record.NormalizeRecord(src)
	if out == nil {
		out = record.Record{}
	}
	out[schema.PathID] = f.newID()
	out[schema.PathName] = src.Name() + CopySuffix
	for _, axis := range []string{schema.PathPositionX, schema.PathPositionY} {
		if n, ok := schema.AsNumber(mustGet(out, axis)); ok {
			out.MustSet(axis, n+DuplicateOffset)
		}
	}
	return out
}

func mustGet(r record.Record, path string) any {
	v, _ := r.MustGet(path)
	return v
}
