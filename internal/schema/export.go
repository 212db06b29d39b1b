package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML shape of an exported catalog.
type CatalogFile struct {
	Variants []CatalogVariant `yaml:"variants" json:"variants"`
}

// CatalogVariant is one exported descriptor.
type CatalogVariant struct {
	ID           Variant        `yaml:"id" json:"id"`
	Label        string         `yaml:"label" json:"label"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	Sections     []Section      `yaml:"sections" json:"sections"`
	Fields       []Field        `yaml:"fields" json:"fields"`
	Required     []string       `yaml:"required,omitempty" json:"required,omitempty"`
	StepRequired []string       `yaml:"stepRequired,omitempty" json:"stepRequired,omitempty"`
	Suggested    []string       `yaml:"suggested,omitempty" json:"suggested,omitempty"`
	Template     map[string]any `yaml:"template" json:"template"`
}

// Catalog converts r into its exported form, fields in section order.
func Catalog(r *Registry) CatalogFile {
	var out CatalogFile
	for _, v := range r.Variants() {
		d, _ := r.Describe(v)
		cv := CatalogVariant{
			ID:           d.Variant,
			Label:        d.Label,
			Description:  d.Description,
			Sections:     d.Sections,
			Required:     d.Required,
			StepRequired: d.StepRequired,
			Suggested:    d.Suggested,
			Template:     d.Template,
		}
		for _, sec := range d.Sections {
			for _, p := range sec.Fields {
				cv.Fields = append(cv.Fields, d.Fields[p])
			}
		}
		out.Variants = append(out.Variants, cv)
	}
	return out
}

// WriteCatalogYAML writes the catalog of r to w as YAML.
func WriteCatalogYAML(w io.Writer, r *Registry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Catalog(r)); err != nil {
		return fmt.Errorf("schema: encode catalog: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("schema: encode catalog: %w", err)
	}
	return nil
}
