// Package suggest finds the closest known identifier to a mistyped one, for
// "did you mean" hints on unknown variants and selection values.
//
// Candidates are scored with Jaro-Winkler similarity on lower-cased strings.
// Candidates whose Double Metaphone codes overlap with the input are accepted
// at a lower threshold than purely orthographic matches, so "marchant" still
// finds "merchant" while unrelated words are rejected.
package suggest

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum score for phonetically similar
// candidates. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum score when no phonetic overlap exists.
// Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] with the given options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Closest returns the candidate most similar to input. ok is false when no
// candidate clears the thresholds or input exactly equals a candidate.
func (m *Matcher) Closest(input string, candidates []string) (best string, score float64, ok bool) {
	in := normalize(input)
	if in == "" || len(candidates) == 0 {
		return "", 0, false
	}
	inCodes := codes(tokens(in))

	var bestPhonetic bool
	for _, c := range candidates {
		cn := normalize(c)
		if cn == "" {
			continue
		}
		if cn == in {
			return "", 0, false
		}
		s := matchr.JaroWinkler(in, cn, false)
		if joined := strings.Join(tokens(cn), ""); joined != cn {
			if js := matchr.JaroWinkler(strings.Join(tokens(in), ""), joined, false); js > s {
				s = js
			}
		}
		phonetic := overlap(inCodes, codes(tokens(cn)))

		switch {
		case phonetic && s >= m.phoneticThreshold:
			if !bestPhonetic || s > score {
				best, score, bestPhonetic = c, s, true
			}
		case !bestPhonetic && s >= m.fuzzyThreshold && s > score:
			best, score = c, s
		}
	}
	return best, score, best != ""
}

// Hint formats a " (did you mean %q?)" suffix, or "" when nothing is close.
func (m *Matcher) Hint(input string, candidates []string) string {
	best, _, ok := m.Closest(input, candidates)
	if !ok {
		return ""
	}
	return ` (did you mean "` + best + `"?)`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokens splits identifiers on underscores, hyphens and spaces.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
}

func codes(toks []string) map[string]struct{} {
	out := make(map[string]struct{}, len(toks)*2)
	for _, t := range toks {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
