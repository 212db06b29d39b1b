package validate

// Severity ranks a finding.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Code classifies a finding.
type Code string

const (
	// CodeStructural marks a required field that is missing or mistyped, or a
	// value outside its allowed range. Always an error.
	CodeStructural Code = "structural"

	// CodeUnknownVariant marks a type that names no catalog variant.
	CodeUnknownVariant Code = "unknown_variant"

	// CodeBusinessRule marks a variant-specific rule violation.
	CodeBusinessRule Code = "business_rule"

	// CodeImprovement marks an advisory hint.
	CodeImprovement Code = "improvement"
)

// Finding is one error, warning or suggestion attached to a field path.
type Finding struct {
	Field    string   `json:"field" yaml:"field"`
	Message  string   `json:"message" yaml:"message"`
	Severity Severity `json:"severity" yaml:"severity"`
	Code     Code     `json:"code" yaml:"code"`
}

// Result is the outcome of [Validator.Validate]. Valid is true exactly when
// Errors is empty.
type Result struct {
	Valid       bool      `json:"valid" yaml:"valid"`
	Errors      []Finding `json:"errors" yaml:"errors"`
	Warnings    []Finding `json:"warnings" yaml:"warnings"`
	Suggestions []Finding `json:"suggestions" yaml:"suggestions"`
}

// All returns every finding, errors first.
func (r Result) All() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(r.Suggestions))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return append(out, r.Suggestions...)
}

// ForField returns all findings attached to path.
func (r Result) ForField(path string) []Finding {
	var out []Finding
	for _, f := range r.All() {
		if f.Field == path {
			out = append(out, f)
		}
	}
	return out
}

// HasError reports whether an error is attached to path.
func (r Result) HasError(path string) bool {
	for _, f := range r.Errors {
		if f.Field == path {
			return true
		}
	}
	return false
}

// collector accumulates findings across passes.
type collector struct {
	findings []Finding
}

func (c *collector) add(sev Severity, code Code, field, msg string) {
	c.findings = append(c.findings, Finding{Field: field, Message: msg, Severity: sev, Code: code})
}

func (c *collector) structural(field, msg string) {
	c.add(SeverityError, CodeStructural, field, msg)
}

func (c *collector) ruleError(field, msg string) {
	c.add(SeverityError, CodeBusinessRule, field, msg)
}

func (c *collector) warn(field, msg string) {
	c.add(SeverityWarning, CodeBusinessRule, field, msg)
}

func (c *collector) suggest(field, msg string) {
	c.add(SeveritySuggestion, CodeImprovement, field, msg)
}

func (c *collector) result() Result {
	res := Result{
		Errors:      []Finding{},
		Warnings:    []Finding{},
		Suggestions: []Finding{},
	}
	for _, f := range c.findings {
		switch f.Severity {
		case SeverityError:
			res.Errors = append(res.Errors, f)
		case SeverityWarning:
			res.Warnings = append(res.Warnings, f)
		case SeveritySuggestion:
			res.Suggestions = append(res.Suggestions, f)
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}
