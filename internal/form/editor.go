package form

import (
	"fmt"

	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
)

// ChangeFunc is called after every successful change with the edited path
// and its new value (nil when the field was cleared).
type ChangeFunc func(path string, value any)

// Editor applies edits to one draft. The draft and the change listener are
// supplied by the owner of the edit session; an Editor holds no other state.
// It is not safe for concurrent use.
type Editor struct {
	desc     *schema.Descriptor
	draft    record.Record
	onChange ChangeFunc
}

// NewEditor returns an editor for draft described by d. onChange may be nil.
func NewEditor(d *schema.Descriptor, draft record.Record, onChange ChangeFunc) *Editor {
	return &Editor{desc: d, draft: draft, onChange: onChange}
}

// Apply parses cmd and writes the result into the draft.
func (e *Editor) Apply(cmd EditCommand) (any, error) {
	v, err := Parse(e.desc, cmd)
	if err != nil {
		return nil, err
	}
	if err := e.Set(cmd.Path, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Set writes a typed value at path. A nil value removes the field. Unlike
// [Editor.Apply] it accepts paths outside the descriptor, e.g. for legacy
// data clean-up. Nothing at or beneath id and type can be written, and values
// holding NaN or an infinity are refused.
func (e *Editor) Set(path string, value any) error {
	if immutable(path) {
		return fmt.Errorf("%w: %s", ErrImmutableField, path)
	}
	if !finite(value) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, path)
	}
	if value == nil {
		if err := e.draft.Delete(path); err != nil {
			return fmt.Errorf("form: clear %s: %w", path, err)
		}
	} else if err := e.draft.Set(path, value); err != nil {
		return fmt.Errorf("form: set %s: %w", path, err)
	}
	e.changed(path)
	return nil
}

// AppendItem adds item to the end of the sequence at path.
func (e *Editor) AppendItem(path string, item any) error {
	seq, err := e.sequence(path)
	if err != nil {
		return err
	}
	return e.Set(path, append(seq, item))
}

// RemoveItem deletes the element at index from the sequence at path.
func (e *Editor) RemoveItem(path string, index int) error {
	seq, err := e.sequence(path)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(seq) {
		return fmt.Errorf("%w: %s has no item %d", ErrInvalidInput, path, index)
	}
	out := append(seq[:index:index], seq[index+1:]...)
	return e.Set(path, out)
}

// MoveItem moves the element at from to position to within the sequence at
// path, shifting the elements in between.
func (e *Editor) MoveItem(path string, from, to int) error {
	seq, err := e.sequence(path)
	if err != nil {
		return err
	}
	if from < 0 || from >= len(seq) || to < 0 || to >= len(seq) {
		return fmt.Errorf("%w: %s cannot move item %d to %d", ErrInvalidInput, path, from, to)
	}
	item := seq[from]
	rest := append(seq[:from:from], seq[from+1:]...)
	out := make([]any, 0, len(seq))
	out = append(out, rest[:to]...)
	out = append(out, item)
	out = append(out, rest[to:]...)
	return e.Set(path, out)
}

// Draft returns the draft being edited.
func (e *Editor) Draft() record.Record { return e.draft }

// sequence returns a private copy of the sequence at path, checking that the
// descriptor declares path as a sequence.
func (e *Editor) sequence(path string) ([]any, error) {
	if f, ok := e.desc.Field(path); !ok || f.Kind != schema.KindSequence {
		return nil, fmt.Errorf("%w: %s is not a list field", ErrInvalidInput, path)
	}
	src := e.draft.Sequence(path)
	out := make([]any, len(src))
	copy(out, src)
	return out, nil
}

func (e *Editor) changed(path string) {
	if e.onChange == nil {
		return
	}
	v, _ := e.draft.MustGet(path)
	e.onChange(path, v)
}
