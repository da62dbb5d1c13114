// Package pdf checks contract templates before they are served: the bytes
// must parse as a PDF with pages and, for fillable contracts, carry a form.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/cesuma/contratos-api/internal/pdf/form"
)

// TemplateReport is the outcome of validating one template
type TemplateReport struct {
	Name    string   `json:"name"`
	Valid   bool     `json:"valid"`
	Message string   `json:"message,omitempty"`
	Size    int64    `json:"size"`
	Pages   int      `json:"pages"`
	Title   string   `json:"title,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

// Validator handles template validation
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator rejecting templates above maxFileSize bytes
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateTemplate validates the bytes of a template. A failed check is
// reported in the result, not as an error.
func (v *Validator) ValidateTemplate(name string, data []byte) *TemplateReport {
	report := &TemplateReport{
		Name: name,
		Size: int64(len(data)),
	}

	if err := v.check(report, data); err != nil {
		report.Message = err.Error()
		return report
	}

	report.Valid = true
	return report
}

// IsValidTemplate performs a quick check of a template
func (v *Validator) IsValidTemplate(name string, data []byte) bool {
	return v.ValidateTemplate(name, data).Valid
}

func (v *Validator) check(report *TemplateReport, data []byte) error {
	if report.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	if !strings.HasSuffix(strings.ToLower(report.Name), ".pdf") {
		return fmt.Errorf("template is not a PDF: %s", report.Name)
	}

	if report.Size == 0 {
		return fmt.Errorf("template is empty: %s", report.Name)
	}

	if v.maxFileSize > 0 && report.Size > v.maxFileSize {
		return fmt.Errorf("template too large: %d bytes (max: %d bytes)",
			report.Size, v.maxFileSize)
	}

	pages, title, err := readOutline(data)
	if err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	if pages == 0 {
		return fmt.Errorf("template has no pages: %s", report.Name)
	}
	report.Pages = pages
	report.Title = title

	fields, err := form.InspectBytes(data)
	if err != nil {
		return fmt.Errorf("unreadable form: %w", err)
	}
	report.Fields = form.Names(fields)

	return nil
}

// readOutline opens the document with the text reader and returns its page
// count and title
func readOutline(data []byte) (pages int, title string, err error) {
	defer func() {
		// the reader panics on some malformed inputs
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", err
	}

	pages = r.NumPage()

	trailer := r.Trailer()
	if trailer.IsNull() {
		return pages, "", nil
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return pages, "", nil
	}
	if t := info.Key("Title"); !t.IsNull() {
		title = strings.TrimSpace(t.Text())
	}
	return pages, title, nil
}
