package suggest

import "testing"

var variants = []string{
	"dialogue", "merchant", "trainer", "healer", "gym_leader", "transport",
	"service", "minigame", "researcher", "guild", "event", "quest_master",
}

func TestClosest(t *testing.T) {
	t.Parallel()

	m := New()
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"marchant", "merchant", true},
		{"Trainr", "trainer", true},
		{"questmaster", "quest_master", true},
		{"gym-leader", "gym_leader", true},
		{"xyzzy", "", false},
		{"", "", false},
		{"merchant", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, _, ok := m.Closest(tt.input, variants)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Closest(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestClosest_NoCandidates(t *testing.T) {
	t.Parallel()

	if _, _, ok := New().Closest("merchant", nil); ok {
		t.Error("expected no match for empty candidate list")
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	m := New()
	if got := m.Hint("healr", variants); got != ` (did you mean "healer"?)` {
		t.Errorf("Hint = %q", got)
	}
	if got := m.Hint("qqqq", variants); got != "" {
		t.Errorf("Hint for garbage = %q, want empty", got)
	}
}

func TestThresholdOptions(t *testing.T) {
	t.Parallel()

	strict := New(WithPhoneticThreshold(0.999), WithFuzzyThreshold(0.999))
	if _, _, ok := strict.Closest("marchant", variants); ok {
		t.Error("strict matcher accepted a near miss")
	}
}
