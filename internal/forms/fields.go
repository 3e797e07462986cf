// Package forms describes the input forms the pages render and turns
// submitted values into typed, validated input.
package forms

// Kind is the kind of input a field renders as.
type Kind string

const (
	KindText             Kind = "text"
	KindTextarea         Kind = "textarea"
	KindDate             Kind = "date"
	KindEmail            Kind = "email"
	KindPassword         Kind = "password"
	KindSelect           Kind = "select"
	KindCheckboxMultiple Kind = "checkbox-multiple"
	KindFile             Kind = "file"
)

// ClassFor is the CSS class each field kind renders with.
func ClassFor(k Kind) string {
	switch k {
	case KindFile:
		return "form-control-file"
	case KindCheckboxMultiple:
		return ""
	default:
		return "form-control"
	}
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Field struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Kind        Kind     `json:"kind"`
	Required    bool     `json:"required"`
	Choices     []Choice `json:"choices,omitempty"`
	Class       string   `json:"class"`
	Placeholder string   `json:"placeholder,omitempty"`
	Value       any      `json:"value,omitempty"`
}

func field(name, label string, kind Kind, required bool) Field {
	return Field{Name: name, Label: label, Kind: kind, Required: required, Class: ClassFor(kind)}
}

func (f Field) withChoices(c []Choice) Field {
	f.Choices = c
	return f
}

func (f Field) withValue(v any) Field {
	f.Value = v
	return f
}

func (f Field) withPlaceholder(p string) Field {
	f.Placeholder = p
	return f
}
