// Package wizard implements the four-step create/edit flow for a single entity
// draft: choose a variant, fill in basic info, configure the variant, then
// preview and save.
//
// A [Controller] owns at most one live [Session] at a time. Moving forward is
// gated on the completeness of every step being left behind; moving back is
// always allowed. Every change re-runs the validator so that the latest
// [validate.Result] is always available for display.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/form"
	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
)

// Step is a wizard stage.
type Step int

const (
	StepVariantSelect Step = iota + 1
	StepBasicInfo
	StepVariantConfig
	StepPreview
)

// String returns a short name for s.
func (s Step) String() string {
	switch s {
	case StepVariantSelect:
		return "variant"
	case StepBasicInfo:
		return "basic"
	case StepVariantConfig:
		return "config"
	case StepPreview:
		return "preview"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrNoSession is returned by every operation that needs a live session
	// when none has been started.
	ErrNoSession = errors.New("wizard: no active session")

	// ErrStepIncomplete is returned when a step's required fields are not
	// filled in, or an operation is attempted from the wrong step.
	ErrStepIncomplete = errors.New("wizard: complete the required fields first")

	// ErrInvalidDraft is returned by Save when the draft has validation errors.
	ErrInvalidDraft = errors.New("wizard: draft has validation errors")

	// ErrVariantLocked is returned when changing the variant of an existing
	// entity, or after leaving the variant step.
	ErrVariantLocked = errors.New("wizard: variant cannot be changed")
)

// incompleteNotice is shown when a forward move is refused.
const incompleteNotice = "Complete the required fields before continuing."

// Saver receives a finished draft. Implementations decide where it is stored.
type Saver interface {
	Save(ctx context.Context, rec record.Record) error
}

// SaverFunc adapts a function to [Saver].
type SaverFunc func(ctx context.Context, rec record.Record) error

// Save calls f.
func (f SaverFunc) Save(ctx context.Context, rec record.Record) error { return f(ctx, rec) }

// Session is a snapshot of the live wizard state.
type Session struct {
	Draft           record.Record
	Step            Step
	EditingExisting bool
}

// Option configures a [Controller].
type Option func(*Controller)

// WithNotifier sets the notification collaborator. Default: [notify.Discard].
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller drives one wizard session. All methods are safe for concurrent
// use, though a UI normally calls them from a single goroutine.
type Controller struct {
	reg       *schema.Registry
	factory   *factory.Factory
	validator *validate.Validator
	saver     Saver
	notifier  notify.Notifier
	metrics   *observe.Metrics

	mu      sync.Mutex
	session *Session
	desc    *schema.Descriptor
	editor  *form.Editor
	result  validate.Result
}

// New returns a controller. saver receives drafts on save.
func New(f *factory.Factory, v *validate.Validator, saver Saver, opts ...Option) *Controller {
	c := &Controller{
		reg:       v.Registry(),
		factory:   f,
		validator: v,
		saver:     saver,
		notifier:  notify.Discard,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Begin starts a new session at the variant step with a blank draft,
// discarding any session in progress.
func (c *Controller) Begin(ctx context.Context) Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(ctx, &Session{Draft: c.factory.Blank(), Step: StepVariantSelect})
	return c.snapshot()
}

// BeginEdit starts a session editing a copy of rec at the basic info step.
// The variant of an existing entity is locked.
func (c *Controller) BeginEdit(ctx context.Context, rec record.Record) (Session, error) {
	v, ok := schema.ParseVariant(rec.Type())
	d, described := c.reg.Describe(v)
	if !ok || !described {
		return Session{}, fmt.Errorf("wizard: edit %s: unknown variant %q", rec.ID(), rec.Type())
	}
	draft := record.NormalizeRecord(rec)
	form.EnsureSequences(d, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(ctx, &Session{Draft: draft, Step: StepBasicInfo, EditingExisting: true})
	c.bind(d)
	return c.snapshot(), nil
}

// SelectVariant applies v's defaults to the draft and advances to the basic
// info step. It is only valid at the variant step of a new entity.
func (c *Controller) SelectVariant(v schema.Variant) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, ErrNoSession
	}
	if c.session.EditingExisting {
		return c.snapshot(), ErrVariantLocked
	}
	if c.session.Step != StepVariantSelect {
		return c.snapshot(), fmt.Errorf("%w: go back to the variant step first", ErrVariantLocked)
	}
	draft, err := c.factory.ApplyVariant(c.session.Draft, v)
	if err != nil {
		return c.snapshot(), fmt.Errorf("wizard: select variant: %w", err)
	}
	d, _ := c.reg.Describe(v)
	form.EnsureSequences(d, draft)
	c.session.Draft = draft
	c.session.Step = StepBasicInfo
	c.bind(d)
	return c.snapshot(), nil
}

// GoToStep moves to step n. Moving back, or staying, always succeeds. Moving
// forward succeeds only when every step from the current one up to n-1 is
// complete; otherwise the session is unchanged, a notice is sent and the
// returned error wraps [ErrStepIncomplete].
func (c *Controller) GoToStep(ctx context.Context, n Step) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, ErrNoSession
	}
	if n < StepVariantSelect || n > StepPreview {
		return c.snapshot(), fmt.Errorf("wizard: no step %d", int(n))
	}
	for s := c.session.Step; s < n; s++ {
		if missing := c.missing(s); len(missing) > 0 {
			c.notifier.Notify(ctx, incompleteNotice, notify.LevelWarning)
			return c.snapshot(), fmt.Errorf("%w: %s step needs %s", ErrStepIncomplete, s, strings.Join(missing, ", "))
		}
	}
	c.session.Step = n
	return c.snapshot(), nil
}

// ValidateCurrentStep reports whether the current step is complete. The
// returned error wraps [ErrStepIncomplete] and names the missing fields.
func (c *Controller) ValidateCurrentStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNoSession
	}
	if missing := c.missing(c.session.Step); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrStepIncomplete, strings.Join(missing, ", "))
	}
	return nil
}

// Apply parses and applies a single field edit.
func (c *Controller) Apply(cmd form.EditCommand) (validate.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return c.result, err
	}
	if _, err := c.editor.Apply(cmd); err != nil {
		return c.result, err
	}
	return c.result, nil
}

// SetField writes a typed value into the draft. A nil value clears the field.
func (c *Controller) SetField(path string, value any) (validate.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return c.result, err
	}
	if err := c.editor.Set(path, value); err != nil {
		return c.result, err
	}
	return c.result, nil
}

// Edit runs fn against the session's field editor, for list operations such as
// [form.Editor.AppendItem]. The editor must not be retained after fn returns.
func (c *Controller) Edit(fn func(*form.Editor) error) (validate.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return c.result, err
	}
	if err := fn(c.editor); err != nil {
		return c.result, err
	}
	return c.result, nil
}

// MigrateLegacyShop rewrites superseded merchant shop data in the draft into
// the current shape.
func (c *Controller) MigrateLegacyShop() (validate.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return c.result, err
	}
	c.session.Draft = validate.MigrateLegacyShop(c.session.Draft)
	c.bind(c.desc)
	return c.result, nil
}

// Form returns the dynamic form for the current draft.
func (c *Controller) Form() (form.Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return form.Form{}, ErrNoSession
	}
	if c.desc == nil {
		return form.Form{}, fmt.Errorf("%w: select a variant", ErrStepIncomplete)
	}
	return form.Build(c.desc, c.session.Draft, c.result), nil
}

// Result returns the findings for the current draft.
func (c *Controller) Result() validate.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Session returns a snapshot of the live session.
func (c *Controller) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return c.snapshot(), true
}

// Save hands a copy of the draft to the saver. It is only available at the
// preview step and only for a draft without validation errors. On success the
// session ends; on any failure the draft is kept unchanged.
func (c *Controller) Save(ctx context.Context) (validate.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return validate.Result{}, ErrNoSession
	}
	if c.session.Step != StepPreview {
		return c.result, fmt.Errorf("%w: save is only available from the preview step", ErrStepIncomplete)
	}
	res := c.validator.Validate(c.session.Draft)
	c.result = res
	c.metrics.RecordValidation(ctx, c.session.Draft.Type(), res.Valid, len(res.Errors), len(res.Warnings), len(res.Suggestions))
	if !res.Valid {
		return res, fmt.Errorf("%w: %d error(s)", ErrInvalidDraft, len(res.Errors))
	}
	if err := c.saver.Save(ctx, c.session.Draft.Clone()); err != nil {
		return res, fmt.Errorf("wizard: save %s: %w", c.session.Draft.ID(), err)
	}
	observe.Logger(ctx).Info("wizard: entity saved", "id", c.session.Draft.ID(), "type", c.session.Draft.Type())
	c.end(ctx, "saved")
	return res, nil
}

// Cancel discards the draft and ends the session. It is a no-op without one.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.end(ctx, "cancelled")
	}
}

// replace installs s, ending any previous session.
func (c *Controller) replace(ctx context.Context, s *Session) {
	if c.session != nil {
		c.end(ctx, "cancelled")
	}
	c.session = s
	c.result = c.validator.Validate(s.Draft)
	c.metrics.WizardStarted(ctx)
}

func (c *Controller) end(ctx context.Context, outcome string) {
	c.session = nil
	c.desc = nil
	c.editor = nil
	c.result = validate.Result{}
	c.metrics.WizardFinished(ctx, outcome)
}

// bind attaches an editor for d to the current draft. The editor reports
// every change back to the controller, which re-validates. Callers hold mu.
func (c *Controller) bind(d *schema.Descriptor) {
	c.desc = d
	c.editor = form.NewEditor(d, c.session.Draft, func(string, any) {
		c.result = c.validator.Validate(c.session.Draft)
	})
	c.result = c.validator.Validate(c.session.Draft)
}

func (c *Controller) editable() error {
	if c.session == nil {
		return ErrNoSession
	}
	if c.editor == nil {
		return fmt.Errorf("%w: select a variant", ErrStepIncomplete)
	}
	return nil
}

// missing lists the fields step s still needs. Callers hold mu.
func (c *Controller) missing(s Step) []string {
	draft := c.session.Draft
	switch s {
	case StepVariantSelect:
		if _, ok := schema.ParseVariant(draft.Type()); !ok || c.desc == nil {
			return []string{schema.PathType}
		}
	case StepBasicInfo:
		var out []string
		for _, p := range []string{schema.PathName, schema.PathSprite} {
			if strings.TrimSpace(draft.StringAt(p)) == "" {
				out = append(out, p)
			}
		}
		return out
	case StepVariantConfig:
		if c.desc == nil {
			return []string{schema.PathType}
		}
		var out []string
		for _, p := range c.desc.StepRequired {
			if blank(draft, p) {
				out = append(out, p)
			}
		}
		return out
	case StepPreview:
		res := c.validator.Validate(draft)
		c.result = res
		out := make([]string, 0, len(res.Errors))
		for _, f := range res.Errors {
			out = append(out, f.Field)
		}
		return out
	}
	return nil
}

func blank(rec record.Record, path string) bool {
	v, ok := rec.MustGet(path)
	if !ok || v == nil {
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

// snapshot copies the session so callers cannot mutate the live draft.
// Callers hold mu.
func (c *Controller) snapshot() Session {
	s := *c.session
	s.Draft = c.session.Draft.Clone()
	return s
}
