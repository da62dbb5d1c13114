// Package form reads the AcroForm structure of a PDF through pdfcpu: field
// names, types, current values and the pages their widgets sit on.
package form

import (
	"sort"
)

// FieldType represents the type of a form field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeSelect    FieldType = "select"
	FieldTypeButton    FieldType = "button"
	FieldTypeSignature FieldType = "signature"
	FieldTypeUnknown   FieldType = "unknown"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4)
const (
	flagReadOnly   = 1 << 0
	flagRequired   = 1 << 1
	flagMultiline  = 1 << 12
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagComb       = 1 << 24
)

// Field is one terminal AcroForm field
type Field struct {
	Name       string      `json:"name"`
	Type       FieldType   `json:"type"`
	Value      string      `json:"value,omitempty"`
	Default    string      `json:"default,omitempty"`
	Options    []string    `json:"options,omitempty"`
	ReadOnly   bool        `json:"read_only"`
	Required   bool        `json:"required"`
	Multiline  bool        `json:"multiline,omitempty"`
	Comb       bool        `json:"comb,omitempty"`
	MaxLength  int         `json:"max_length,omitempty"`
	Pages      []int       `json:"pages,omitempty"`
	Widgets    int         `json:"widgets"`
	Appearance *Appearance `json:"appearance,omitempty"`
}

// Names returns the field names in document order
func Names(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Values returns the current value of every field keyed by name
func Values(fields []Field) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}
	return values
}

// SortByName orders fields alphabetically
func SortByName(fields []Field) {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
}
