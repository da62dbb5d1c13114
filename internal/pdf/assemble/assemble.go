// Package assemble fills the AcroForm of a contract template with resolved
// values and serializes the result, optionally flattened into page content.
package assemble

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/cesuma/contratos-api/internal/contract"
	"github.com/cesuma/contratos-api/internal/pdf/form"
)

const (
	defaultFontName = "Helv"
	defaultFontSize = 10.0
	minFontSize     = 6.0
	maxAutoFontSize = 12.0

	// annotation flags (PDF 32000-1, 12.5.3)
	annotFlagHidden = 1 << 1
	annotFlagNoView = 1 << 5
)

// Result summarises one assembly
type Result struct {
	Bytes []byte
	// Filled counts the widgets that received a value
	Filled int
	// Widgets counts all widgets found on the pages
	Widgets   int
	Flattened bool
}

// Assembler injects values into templates. It holds no per-request state and
// is safe for concurrent use.
type Assembler struct {
	fontSize float64
}

// Option configures an Assembler
type Option func(*Assembler)

// WithFontSize sets the size used when a field's DA asks for auto sizing
func WithFontSize(size float64) Option {
	return func(a *Assembler) {
		if size > 0 {
			a.fontSize = size
		}
	}
}

// New creates an Assembler
func New(opts ...Option) *Assembler {
	a := &Assembler{fontSize: defaultFontSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble fills template with values and returns the serialized document
func (a *Assembler) Assemble(template []byte, values map[string]string, flatten bool) ([]byte, error) {
	res, err := a.AssembleResult(template, values, flatten)
	if err != nil {
		return nil, err
	}
	return res.Bytes, nil
}

// AssembleResult is Assemble with fill statistics
func (a *Assembler) AssembleResult(template []byte, values map[string]string, flatten bool) (*Result, error) {
	if len(template) == 0 {
		return nil, contract.NewAssemblyError("read template", fmt.Errorf("empty template"))
	}

	ctx, err := form.ReadContext(bytes.NewReader(template))
	if err != nil {
		return nil, contract.NewAssemblyError("read template", err)
	}

	doc, err := newDocument(ctx, a.fontSize)
	if err != nil {
		return nil, contract.NewAssemblyError("load form", err)
	}

	filled, err := doc.fill(values)
	if err != nil {
		return nil, contract.NewAssemblyError("fill fields", err)
	}

	if flatten {
		if err := doc.flatten(); err != nil {
			return nil, contract.NewAssemblyError("flatten", err)
		}
	} else if doc.acroForm != nil {
		doc.acroForm["NeedAppearances"] = types.Boolean(true)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, contract.NewAssemblyError("write document", err)
	}

	return &Result{
		Bytes:     buf.Bytes(),
		Filled:    filled,
		Widgets:   len(doc.widgets),
		Flattened: flatten,
	}, nil
}

// widget is one widget annotation placed on a page
type widget struct {
	page      int
	dict      types.Dict
	field     types.Dict
	name      string
	fieldType form.FieldType
	rect      [4]float64
	// annotFlags holds the annotation F bits
	annotFlags int
	// appearance is the normal appearance stream to draw when flattening
	appearance types.Object
}

func (w *widget) width() float64  { return w.rect[2] - w.rect[0] }
func (w *widget) height() float64 { return w.rect[3] - w.rect[1] }

// hidden reports the Hidden or NoView annotation flags
func (w *widget) hidden() bool {
	return w.annotFlags&(annotFlagHidden|annotFlagNoView) != 0
}

type document struct {
	ctx      *model.Context
	acroForm types.Dict
	widgets  []*widget
	fontSize float64
	fonts    map[string]types.Object
}

func newDocument(ctx *model.Context, fontSize float64) (*document, error) {
	acroForm, err := form.AcroForm(ctx)
	if err != nil {
		return nil, err
	}

	d := &document{
		ctx:      ctx,
		acroForm: acroForm,
		fontSize: fontSize,
		fonts:    make(map[string]types.Object),
	}

	if err := d.collectWidgets(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *document) collectWidgets() error {
	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
		if err != nil {
			return fmt.Errorf("page %d: %w", pageNr, err)
		}
		if pageDict == nil {
			continue
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := d.ctx.DereferenceArray(annotsObj)
		if err != nil {
			return fmt.Errorf("page %d annotations: %w", pageNr, err)
		}

		for _, annotObj := range annots {
			annot, err := d.ctx.DereferenceDict(annotObj)
			if err != nil || annot == nil || !isWidget(d.ctx, annot) {
				continue
			}

			w := &widget{
				page:      pageNr,
				dict:      annot,
				field:     d.fieldDict(annot),
				name:      form.FullName(d.ctx, annot),
				fieldType: form.TypeOf(d.ctx, annot),
			}
			if fObj, found := annot.Find("F"); found {
				if f, err := d.ctx.DereferenceInteger(fObj); err == nil && f != nil {
					w.annotFlags = f.Value()
				}
			}
			if w.rect, err = d.rect(annot); err != nil {
				return fmt.Errorf("widget %q on page %d: %w", w.name, pageNr, err)
			}
			d.widgets = append(d.widgets, w)
		}
	}
	return nil
}

func isWidget(ctx *model.Context, annot types.Dict) bool {
	subtype, found := annot.Find("Subtype")
	if !found {
		return false
	}
	name, err := ctx.DereferenceName(subtype, model.V10, nil)
	return err == nil && name == "Widget"
}

// fieldDict returns the dictionary carrying the field's value: the widget
// itself when it is merged with its field, its parent otherwise
func (d *document) fieldDict(annot types.Dict) types.Dict {
	if _, hasT := annot.Find("T"); hasT {
		return annot
	}
	if parentObj, found := annot.Find("Parent"); found {
		if parent, err := d.ctx.DereferenceDict(parentObj); err == nil && parent != nil {
			return parent
		}
	}
	return annot
}

func (d *document) rect(annot types.Dict) ([4]float64, error) {
	var r [4]float64

	rectObj, found := annot.Find("Rect")
	if !found {
		return r, fmt.Errorf("missing Rect")
	}
	arr, err := d.ctx.DereferenceArray(rectObj)
	if err != nil {
		return r, err
	}
	if len(arr) != 4 {
		return r, fmt.Errorf("invalid Rect with %d entries", len(arr))
	}
	for i, o := range arr {
		f, err := d.ctx.DereferenceNumber(o)
		if err != nil {
			return r, err
		}
		r[i] = f
	}

	// normalise so that r[0],r[1] is the lower left corner
	if r[0] > r[2] {
		r[0], r[2] = r[2], r[0]
	}
	if r[1] > r[3] {
		r[1], r[3] = r[3], r[1]
	}
	return r, nil
}

// fill writes values into every widget whose field name has one. Widgets of
// fields absent from values keep the template's content.
func (d *document) fill(values map[string]string) (int, error) {
	filled := 0
	for _, w := range d.widgets {
		value, ok := values[w.name]

		switch w.fieldType {
		case form.FieldTypeText, form.FieldTypeSelect:
			if ok {
				w.field["V"] = encodeText(value)
			} else {
				existing, found := form.InheritedEntry(d.ctx, w.dict, "V")
				if !found {
					w.appearance = d.normalAppearance(w.dict)
					continue
				}
				value = form.ValueString(d.ctx, existing)
			}

			ap, err := d.textAppearance(w, value)
			if err != nil {
				return filled, err
			}
			w.dict["AP"] = types.Dict(map[string]types.Object{"N": *ap})
			w.appearance = *ap

		case form.FieldTypeCheckbox:
			if ok {
				state := d.checkboxState(w.dict, value)
				w.field["V"] = types.Name(state)
				w.dict["AS"] = types.Name(state)
			}
			w.appearance = d.normalAppearance(w.dict)

		default:
			w.appearance = d.normalAppearance(w.dict)
			continue
		}

		if ok {
			filled++
		}
	}
	return filled, nil
}

// normalAppearance returns the widget's current normal appearance stream,
// selecting the AS state for widgets with several states
func (d *document) normalAppearance(annot types.Dict) types.Object {
	apObj, found := annot.Find("AP")
	if !found {
		return nil
	}
	ap, err := d.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	n, found := ap.Find("N")
	if !found {
		return nil
	}

	if sd, _, err := d.ctx.DereferenceStreamDict(n); err == nil && sd != nil {
		return n
	}

	states, err := d.ctx.DereferenceDict(n)
	if err != nil || states == nil {
		return nil
	}
	asObj, found := annot.Find("AS")
	if !found {
		return nil
	}
	as, err := d.ctx.DereferenceName(asObj, model.V10, nil)
	if err != nil {
		return nil
	}
	if stream, found := states.Find(as.Value()); found {
		return stream
	}
	return nil
}

// checkboxState maps a textual value to the widget's on state or Off
func (d *document) checkboxState(annot types.Dict, value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "x", "true", "yes", "si", "sí", "on":
	default:
		return "Off"
	}

	if apObj, found := annot.Find("AP"); found {
		if ap, err := d.ctx.DereferenceDict(apObj); err == nil && ap != nil {
			if n, found := ap.Find("N"); found {
				if states, err := d.ctx.DereferenceDict(n); err == nil {
					for state := range states {
						if state != "Off" {
							return state
						}
					}
				}
			}
		}
	}
	return "Yes"
}
