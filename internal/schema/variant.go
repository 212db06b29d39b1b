// Package schema defines the closed catalog of NPC entity variants and the
// field schemas that drive validation and form building.
//
// The catalog is compiled in. [Builtin] returns the shared [Registry]; callers
// must treat the returned descriptors as read-only and deep-copy templates
// before mutating them.
package schema

import (
	"fmt"
	"math"
)

// Variant is the discriminator selecting which schema applies to an entity.
// The set of variants is closed; use [ParseVariant] to convert untrusted input.
type Variant string

const (
	Dialogue    Variant = "dialogue"
	Merchant    Variant = "merchant"
	Trainer     Variant = "trainer"
	Healer      Variant = "healer"
	GymLeader   Variant = "gym_leader"
	Transport   Variant = "transport"
	Service     Variant = "service"
	Minigame    Variant = "minigame"
	Researcher  Variant = "researcher"
	Guild       Variant = "guild"
	Event       Variant = "event"
	QuestMaster Variant = "quest_master"
)

// allVariants lists every variant in catalog order.
var allVariants = [...]Variant{
	Dialogue, Merchant, Trainer, Healer, GymLeader, Transport,
	Service, Minigame, Researcher, Guild, Event, QuestMaster,
}

// Variants returns every known variant in catalog order. The returned slice
// is a fresh copy.
func Variants() []Variant {
	out := make([]Variant, len(allVariants))
	copy(out, allVariants[:])
	return out
}

// IsValid reports whether v is one of the known variants.
func (v Variant) IsValid() bool {
	switch v {
	case Dialogue, Merchant, Trainer, Healer, GymLeader, Transport,
		Service, Minigame, Researcher, Guild, Event, QuestMaster:
		return true
	}
	return false
}

// ParseVariant converts s into a [Variant]. It returns false when s does not
// name a known variant.
func ParseVariant(s string) (Variant, bool) {
	v := Variant(s)
	return v, v.IsValid()
}

// Kind is the value-type tag of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindSequence
	KindMapping
	KindSelection
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	case KindSelection:
		return "selection"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name so catalog exports stay readable.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by [Kind.MarshalText].
func (k *Kind) UnmarshalText(text []byte) error {
	for c := KindString; c <= KindSelection; c++ {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("schema: unknown field kind %q", text)
}

// Matches reports whether v carries the value shape expected by k. Selection
// values are strings; option membership is checked separately.
func (k Kind) Matches(v any) bool {
	switch k {
	case KindString, KindSelection:
		_, ok := v.(string)
		return ok
	case KindNumber:
		_, ok := AsNumber(v)
		return ok
	case KindBoolean:
		_, ok := v.(bool)
		return ok
	case KindSequence:
		_, ok := v.([]any)
		return ok
	case KindMapping:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

// AsNumber converts any Go numeric value into a float64. NaN and the
// infinities are not numbers here: they fail every range check and cannot be
// encoded as JSON.
func AsNumber(v any) (float64, bool) {
	n, ok := asFloat(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
