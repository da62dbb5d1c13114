package form

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// maxDepth bounds Parent/Kids traversal on malformed field trees
const maxDepth = 32

// ReadContext parses a PDF into a fresh pdfcpu context. Each call returns an
// independent in-memory document.
func ReadContext(rs io.ReadSeeker) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to ensure page count: %w", err)
	}

	return ctx, nil
}

// InspectBytes lists the form fields of an in-memory PDF
func InspectBytes(data []byte) ([]Field, error) {
	ctx, err := ReadContext(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Inspect(ctx)
}

// Inspect lists every terminal field of the document's AcroForm in document
// order. A document without an AcroForm has no fields.
func Inspect(ctx *model.Context) ([]Field, error) {
	acroForm, err := AcroForm(ctx)
	if err != nil {
		return nil, err
	}
	if acroForm == nil {
		return []Field{}, nil
	}

	fieldsObj, found := acroForm.Find("Fields")
	if !found {
		return []Field{}, nil
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	pages, err := WidgetPages(ctx)
	if err != nil {
		return nil, err
	}

	w := &walker{ctx: ctx, pages: pages, fields: []Field{}}
	for _, obj := range fieldsArray {
		w.walk(obj, "", 0)
	}
	return w.fields, nil
}

// AcroForm returns the document's AcroForm dictionary, or nil when absent
func AcroForm(ctx *model.Context) (types.Dict, error) {
	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	obj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, nil
	}

	acroForm, err := ctx.DereferenceDict(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	return acroForm, nil
}

// WidgetPages maps the object number of every annotation referenced from a
// page to that page's number
func WidgetPages(ctx *model.Context) (map[int]int, error) {
	pages := make(map[int]int)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageDict, _, _, err := ctx.PageDict(pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", pageNr, err)
		}
		if pageDict == nil {
			continue
		}

		annotsObj, found := pageDict.Find("Annots")
		if !found {
			continue
		}
		annots, err := ctx.DereferenceArray(annotsObj)
		if err != nil {
			continue
		}
		for _, a := range annots {
			if nr, ok := ObjectNumber(a); ok {
				if _, seen := pages[nr]; !seen {
					pages[nr] = pageNr
				}
			}
		}
	}
	return pages, nil
}

// ObjectNumber returns the object number of an indirect reference
func ObjectNumber(o types.Object) (int, bool) {
	switch ref := o.(type) {
	case types.IndirectRef:
		return ref.ObjectNumber.Value(), true
	case *types.IndirectRef:
		if ref != nil {
			return ref.ObjectNumber.Value(), true
		}
	}
	return 0, false
}

type walker struct {
	ctx     *model.Context
	pages   map[int]int
	fields  []Field
	unnamed int
}

func (w *walker) walk(obj types.Object, prefix string, depth int) {
	if depth > maxDepth {
		return
	}

	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return
	}

	name := prefix
	if partial := w.partialName(d); partial != "" {
		name = joinName(prefix, partial)
	}

	var fieldKids, widgetKids types.Array
	if kidsObj, found := d.Find("Kids"); found {
		kids, err := w.ctx.DereferenceArray(kidsObj)
		if err == nil {
			for _, k := range kids {
				kd, err := w.ctx.DereferenceDict(k)
				if err != nil || kd == nil {
					continue
				}
				if _, hasT := kd.Find("T"); hasT {
					fieldKids = append(fieldKids, k)
				} else {
					widgetKids = append(widgetKids, k)
				}
			}
		}
	}

	for _, k := range fieldKids {
		w.walk(k, name, depth+1)
	}
	if len(fieldKids) > 0 && len(widgetKids) == 0 {
		return
	}

	if name == "" {
		w.unnamed++
		name = fmt.Sprintf("field_%d", w.unnamed)
	}

	field := buildField(w.ctx, d, name)

	widgetRefs := widgetKids
	if len(widgetRefs) == 0 {
		widgetRefs = types.Array{obj}
	}
	pageSet := make(map[int]struct{})
	for _, ref := range widgetRefs {
		if nr, ok := ObjectNumber(ref); ok {
			if p, onPage := w.pages[nr]; onPage {
				pageSet[p] = struct{}{}
			}
		}
	}
	field.Widgets = len(widgetRefs)
	for p := range pageSet {
		field.Pages = append(field.Pages, p)
	}
	sort.Ints(field.Pages)

	w.fields = append(w.fields, field)
}

func (w *walker) partialName(d types.Dict) string {
	obj, found := d.Find("T")
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func buildField(ctx *model.Context, d types.Dict, name string) Field {
	field := Field{Name: name, Type: TypeOf(ctx, d)}

	flags := Flags(ctx, d)
	field.ReadOnly = flags&flagReadOnly != 0
	field.Required = flags&flagRequired != 0
	field.Multiline = field.Type == FieldTypeText && flags&flagMultiline != 0
	field.Comb = field.Type == FieldTypeText && IsComb(ctx, d)

	if v, found := InheritedEntry(ctx, d, "V"); found {
		field.Value = ValueString(ctx, v)
	}
	if dv, found := InheritedEntry(ctx, d, "DV"); found {
		field.Default = ValueString(ctx, dv)
	}

	if field.Type == FieldTypeSelect || field.Type == FieldTypeRadio {
		field.Options = options(ctx, d)
	}

	if maxLenObj, found := InheritedEntry(ctx, d, "MaxLen"); found {
		if maxLen, err := ctx.DereferenceInteger(maxLenObj); err == nil && maxLen != nil {
			field.MaxLength = maxLen.Value()
		}
	}

	if da := DefaultAppearance(ctx, d); da != "" {
		field.Appearance = ParseDA(da)
	}

	return field
}

// FullName builds the fully qualified name of a field or widget by walking
// its Parent chain
func FullName(ctx *model.Context, d types.Dict) string {
	var parts []string
	cur := d
	for depth := 0; cur != nil && depth <= maxDepth; depth++ {
		if obj, found := cur.Find("T"); found {
			if s, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil); err == nil && s != "" {
				parts = append([]string{s}, parts...)
			}
		}
		parentObj, found := cur.Find("Parent")
		if !found {
			break
		}
		parent, err := ctx.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		cur = parent
	}
	return strings.Join(parts, ".")
}

// InheritedEntry looks key up on d and then on its ancestors
func InheritedEntry(ctx *model.Context, d types.Dict, key string) (types.Object, bool) {
	cur := d
	for depth := 0; cur != nil && depth <= maxDepth; depth++ {
		if obj, found := cur.Find(key); found && obj != nil {
			return obj, true
		}
		parentObj, found := cur.Find("Parent")
		if !found {
			return nil, false
		}
		parent, err := ctx.DereferenceDict(parentObj)
		if err != nil {
			return nil, false
		}
		cur = parent
	}
	return nil, false
}

// Flags returns the (inherited) Ff bits of a field
func Flags(ctx *model.Context, d types.Dict) int {
	obj, found := InheritedEntry(ctx, d, "Ff")
	if !found {
		return 0
	}
	flags, err := ctx.DereferenceInteger(obj)
	if err != nil || flags == nil {
		return 0
	}
	return flags.Value()
}

// TypeOf determines the field type from the (inherited) FT entry and flags
func TypeOf(ctx *model.Context, d types.Dict) FieldType {
	ftObj, found := InheritedEntry(ctx, d, "FT")
	if !found {
		return FieldTypeUnknown
	}
	ft, err := ctx.DereferenceName(ftObj, model.V10, nil)
	if err != nil {
		return FieldTypeUnknown
	}

	switch ft.Value() {
	case "Btn":
		flags := Flags(ctx, d)
		if flags&flagRadio != 0 {
			return FieldTypeRadio
		}
		if flags&flagPushbutton != 0 {
			return FieldTypeButton
		}
		return FieldTypeCheckbox
	case "Tx":
		return FieldTypeText
	case "Ch":
		return FieldTypeSelect
	case "Sig":
		return FieldTypeSignature
	default:
		return FieldTypeUnknown
	}
}

// DefaultAppearance returns the DA string of a field, falling back to the
// AcroForm-wide default
func DefaultAppearance(ctx *model.Context, d types.Dict) string {
	obj, found := InheritedEntry(ctx, d, "DA")
	if !found {
		acroForm, err := AcroForm(ctx)
		if err != nil || acroForm == nil {
			return ""
		}
		if obj, found = acroForm.Find("DA"); !found {
			return ""
		}
	}
	da, err := ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return da
}

// IsComb reports whether a text field is a comb field
func IsComb(ctx *model.Context, d types.Dict) bool {
	return Flags(ctx, d)&flagComb != 0
}

// ValueString renders a field value (string, name or array) as text
func ValueString(ctx *model.Context, obj types.Object) string {
	o, err := ctx.Dereference(obj)
	if err != nil || o == nil {
		return ""
	}

	switch v := o.(type) {
	case types.StringLiteral, types.HexLiteral:
		s, err := ctx.DereferenceStringOrHexLiteral(v, model.V10, nil)
		if err != nil {
			return ""
		}
		return s
	case types.Name:
		return v.Value()
	case types.Array:
		values := make([]string, 0, len(v))
		for _, item := range v {
			values = append(values, ValueString(ctx, item))
		}
		return strings.Join(values, ", ")
	default:
		return o.String()
	}
}

func options(ctx *model.Context, d types.Dict) []string {
	var opts []string

	optObj, found := InheritedEntry(ctx, d, "Opt")
	if !found {
		return opts
	}
	optArray, err := ctx.DereferenceArray(optObj)
	if err != nil {
		return opts
	}

	for _, opt := range optArray {
		// options are strings or [export display] pairs
		if s, err := ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			opts = append(opts, s)
		} else if arr, err := ctx.DereferenceArray(opt); err == nil && len(arr) >= 2 {
			if display, err := ctx.DereferenceStringOrHexLiteral(arr[1], model.V10, nil); err == nil {
				opts = append(opts, display)
			}
		}
	}
	return opts
}

func joinName(prefix, partial string) string {
	if prefix == "" {
		return partial
	}
	return prefix + "." + partial
}
