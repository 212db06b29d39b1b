package schema

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEveryVariantHasDescriptor(t *testing.T) {
	t.Parallel()

	reg := Builtin()
	for _, v := range Variants() {
		if _, ok := specFor(v); !ok {
			t.Errorf("specFor(%q) has no case", v)
		}
		d, ok := reg.Describe(v)
		if !ok {
			t.Fatalf("Describe(%q) not found", v)
		}
		if d.Variant != v {
			t.Errorf("Describe(%q).Variant = %q", v, d.Variant)
		}
		if d.Label == "" {
			t.Errorf("%s: empty label", v)
		}
		if len(d.Required) == 0 {
			t.Errorf("%s: no required fields", v)
		}
		if len(d.StepRequired) == 0 {
			t.Errorf("%s: no step-required fields", v)
		}
	}
	if got, want := len(reg.Variants()), 12; got != want {
		t.Errorf("registered variants = %d, want %d", got, want)
	}
}

func TestDescribe_UnknownVariant(t *testing.T) {
	t.Parallel()

	d, ok := Builtin().Describe("wizard")
	if ok || d != nil {
		t.Fatalf("Describe(wizard) = %v, %v; want nil, false", d, ok)
	}
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"merchant", true},
		{"quest_master", true},
		{"gym_leader", true},
		{"Merchant", false},
		{"", false},
		{"questmaster", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if _, ok := ParseVariant(tt.in); ok != tt.want {
				t.Errorf("ParseVariant(%q) ok = %v, want %v", tt.in, ok, tt.want)
			}
		})
	}
}

func TestKind_Matches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		v    any
		want bool
	}{
		{KindString, "x", true},
		{KindString, 1.0, false},
		{KindNumber, 1.5, true},
		{KindNumber, 3, true},
		{KindNumber, "3", false},
		{KindBoolean, true, true},
		{KindBoolean, "true", false},
		{KindSequence, []any{}, true},
		{KindSequence, []string{"a"}, false},
		{KindMapping, map[string]any{}, true},
		{KindMapping, []any{}, false},
		{KindSelection, "gold", true},
		{KindSelection, nil, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Matches(tt.v); got != tt.want {
			t.Errorf("%s.Matches(%#v) = %v, want %v", tt.kind, tt.v, got, tt.want)
		}
	}
}

func TestTemplatesMatchFieldKinds(t *testing.T) {
	t.Parallel()

	reg := Builtin()
	for _, v := range reg.Variants() {
		d, _ := reg.Describe(v)
		for _, f := range d.VariantFields() {
			val, ok := lookup(d.Template, f.Path)
			if !ok {
				continue
			}
			if !f.Kind.Matches(val) {
				t.Errorf("%s: template %s = %#v does not match kind %s", v, f.Path, val, f.Kind)
			}
			if f.Kind == KindSelection && val != "" && !f.HasOption(val.(string)) {
				t.Errorf("%s: template %s = %q is not an option", v, f.Path, val)
			}
		}
	}
}

func TestNewRegistry_RejectsInconsistentDescriptor(t *testing.T) {
	t.Parallel()

	bad := &Descriptor{
		Variant:  Merchant,
		Fields:   map[string]Field{"shopId": {Path: "shopId", Kind: KindString}},
		Sections: []Section{{Name: "shop", Fields: []string{"shopId", "missing"}}},
		Required: []string{"nope"},
	}
	_, err := NewRegistry(bad)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{`unknown field "missing"`, `"nope" is listed`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	spec, _ := specFor(Dialogue)
	_, err := NewRegistry(spec.build(Dialogue), spec.build(Dialogue))
	if err == nil || !strings.Contains(err.Error(), "registered twice") {
		t.Fatalf("err = %v, want duplicate error", err)
	}
}

func TestField_InRange(t *testing.T) {
	t.Parallel()

	d, _ := Builtin().Describe(Dialogue)
	f, ok := d.Field(PathInteractionRadius)
	if !ok {
		t.Fatal("interactionRadius not described")
	}
	for n, want := range map[float64]bool{15: false, 16: true, 64: true, 128: true, 200: false} {
		if got := f.InRange(n); got != want {
			t.Errorf("InRange(%v) = %v, want %v", n, got, want)
		}
	}
	if f.InRange(math.NaN()) {
		t.Error("InRange(NaN) = true")
	}
	if got := f.RangeString(); got != "[16, 128]" {
		t.Errorf("RangeString() = %q", got)
	}
}

func TestAsNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 32.5, 32.5, true},
		{"int", 7, 7, true},
		{"uint8", uint8(3), 3, true},
		{"string", "32", 0, false},
		{"nil", nil, 0, false},
		{"NaN", math.NaN(), 0, false},
		{"positive infinity", math.Inf(1), 0, false},
		{"negative infinity", float32(math.Inf(-1)), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := AsNumber(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AsNumber(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWriteCatalogYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCatalogYAML(&buf, Builtin()); err != nil {
		t.Fatalf("WriteCatalogYAML: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"id: merchant", "path: shopConfig.currency", "kind: selection"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog YAML missing %q", want)
		}
	}

	var cf CatalogFile
	if err := yaml.Unmarshal(buf.Bytes(), &cf); err != nil {
		t.Fatalf("decode exported catalog: %v", err)
	}
	if len(cf.Variants) != 12 {
		t.Fatalf("decoded %d variants, want 12", len(cf.Variants))
	}
	if cf.Variants[1].ID != Merchant || cf.Variants[1].Fields[0].Kind != KindString {
		t.Errorf("unexpected merchant entry: %+v", cf.Variants[1])
	}
}

func lookup(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, seg := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = mm[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}
