package assemble

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/cesuma/contratos-api/internal/pdf/form"
)

// approximate Helvetica advance width in em
const avgGlyphWidth = 0.52

// textAppearance builds a Form XObject drawing value inside the widget using
// the field's DA font, and registers it as a new object
func (d *document) textAppearance(w *widget, value string) (*types.IndirectRef, error) {
	width, height := w.width(), w.height()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("widget %q has an empty rectangle", w.name)
	}

	da := form.ParseDA(form.DefaultAppearance(d.ctx, w.dict))
	fontName := da.FontName
	if fontName == "" {
		fontName = defaultFontName
	}
	fontRef, err := d.font(fontName)
	if err != nil {
		return nil, err
	}
	if fontRef == nil {
		fontName = defaultFontName
		if fontRef, err = d.font(fontName); err != nil {
			return nil, err
		}
	}

	text := encodeWinAnsi(singleLine(value))

	color := da.ColorOp
	if color == "" {
		color = "0 g"
	}

	var content bytes.Buffer
	content.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&content, "1 1 %s %s re W n\n", num(width-2), num(height-2))
	content.WriteString("BT\n")

	if cells := d.combCells(w); cells > 0 {
		if len(text) > cells {
			text = text[:cells]
		}
		cell := width / float64(cells)
		size := fitFontSize(da.FontSize, d.fontSize, cell, height, 1)
		fmt.Fprintf(&content, "/%s %s Tf\n%s\n", fontName, num(size), color)
		y := baseline(height, size)
		for i, c := range text {
			x := cell*float64(i) + (cell-size*avgGlyphWidth)/2
			fmt.Fprintf(&content, "1 0 0 1 %s %s Tm\n(%s) Tj\n", num(x), num(y), escapeLiteral([]byte{c}))
		}
	} else {
		size := fitFontSize(da.FontSize, d.fontSize, width, height, len(text))
		fmt.Fprintf(&content, "/%s %s Tf\n%s\n", fontName, num(size), color)
		fmt.Fprintf(&content, "2 %s Td\n", num(baseline(height, size)))
		fmt.Fprintf(&content, "(%s) Tj\n", escapeLiteral(text))
	}
	content.WriteString("ET\nQ\nEMC\n")

	sd, err := d.ctx.NewStreamDictForBuf(content.Bytes())
	if err != nil {
		return nil, err
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.Insert("BBox", types.NewNumberArray(0, 0, width, height))
	sd.Insert("Resources", types.Dict(map[string]types.Object{
		"Font": types.Dict(map[string]types.Object{fontName: fontRef}),
	}))
	if err := sd.Encode(); err != nil {
		return nil, err
	}

	return d.ctx.IndRefForNewObject(*sd)
}

// combCells returns the MaxLen of a comb text field, 0 for other fields
func (d *document) combCells(w *widget) int {
	if w.fieldType != form.FieldTypeText || !form.IsComb(d.ctx, w.dict) {
		return 0
	}
	obj, found := form.InheritedEntry(d.ctx, w.dict, "MaxLen")
	if !found {
		return 0
	}
	maxLen, err := d.ctx.DereferenceInteger(obj)
	if err != nil || maxLen == nil || maxLen.Value() <= 0 {
		return 0
	}
	return maxLen.Value()
}

// font returns the reference of a font from the AcroForm default resources.
// The default font is created on demand; other missing fonts yield nil.
func (d *document) font(name string) (types.Object, error) {
	if ref, ok := d.fonts[name]; ok {
		return ref, nil
	}

	if d.acroForm != nil {
		if drObj, found := d.acroForm.Find("DR"); found {
			if dr, err := d.ctx.DereferenceDict(drObj); err == nil && dr != nil {
				if fontsObj, found := dr.Find("Font"); found {
					if fonts, err := d.ctx.DereferenceDict(fontsObj); err == nil && fonts != nil {
						if ref, found := fonts.Find(name); found {
							d.fonts[name] = ref
							return ref, nil
						}
					}
				}
			}
		}
	}

	if name != defaultFontName {
		return nil, nil
	}

	helvetica := types.Dict(map[string]types.Object{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	})
	ref, err := d.ctx.IndRefForNewObject(helvetica)
	if err != nil {
		return nil, err
	}
	d.fonts[name] = *ref
	return *ref, nil
}

// fitFontSize picks the DA size, or an auto size bounded by the widget, and
// shrinks it until the text fits horizontally
func fitFontSize(daSize, fallback, width, height float64, runes int) float64 {
	size := daSize
	if size <= 0 {
		size = fallback
		if limit := height * 0.7; limit < size {
			size = limit
		}
		if size > maxAutoFontSize {
			size = maxAutoFontSize
		}
	}
	if runes > 0 {
		if fit := (width - 4) / (float64(runes) * avgGlyphWidth); fit < size {
			size = fit
		}
	}
	if size < minFontSize {
		size = minFontSize
	}
	return size
}

func baseline(height, size float64) float64 {
	y := (height-size)/2 + size*0.22
	if y < 1 {
		y = 1
	}
	return y
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// encodeWinAnsi converts text to the single byte encoding of the standard
// fonts, replacing characters it cannot represent
func encodeWinAnsi(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// escapeLiteral escapes raw bytes for a PDF literal string
func escapeLiteral(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '\\' || c == '(' || c == ')':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// encodeText encodes a field value. ASCII stays a literal string, anything
// else becomes UTF-16BE with a byte order mark.
func encodeText(s string) types.Object {
	ascii := true
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return types.StringLiteral(escapeLiteral([]byte(s)))
	}

	units := utf16.Encode([]rune(s))
	raw := make([]byte, 2, 2+2*len(units))
	raw[0], raw[1] = 0xFE, 0xFF
	for _, u := range units {
		raw = append(raw, byte(u>>8), byte(u))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(raw)))
}

func num(f float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
	if s == "" || s == "-" || s == "-0" {
		return "0"
	}
	return s
}
