// Package pdftest writes small AcroForm documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Widget places one annotation of a field on a page (1-based)
type Widget struct {
	Page int
	Rect [4]float64
	// Flags are the annotation F bits; zero means Print (4)
	Flags int
}

// Field describes a form field. A field without widgets gets one on page 1.
type Field struct {
	Name    string
	Value   string
	Type    string // Tx (default), Btn or Ch
	Flags   int
	MaxLen  int
	Widgets []Widget
}

// Document describes the PDF to write
type Document struct {
	Pages      int
	Fields     []Field
	NoAcroForm bool
	// DA overrides the default appearance of every field
	DA string
}

// FormPDF returns a one-page document with a text field for every name
func FormPDF(names ...string) []byte {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n}
	}
	return Build(Document{Pages: 1, Fields: fields})
}

// PlainPDF returns a one-page document without a form
func PlainPDF() []byte {
	return Build(Document{Pages: 1, NoAcroForm: true})
}

// Corrupt returns bytes that start like a PDF but cannot be parsed
func Corrupt() []byte {
	return []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog /Pages 9 0 R\nendobj\ntrailer\n<<>>\n%%EOF\n")
}

type writer struct {
	objects []string
}

func (w *writer) alloc() int {
	w.objects = append(w.objects, "")
	return len(w.objects)
}

func (w *writer) set(nr int, body string) {
	w.objects[nr-1] = body
}

func ref(nr int) string {
	return fmt.Sprintf("%d 0 R", nr)
}

// Build writes the document with a valid cross-reference table
func Build(doc Document) []byte {
	if doc.Pages < 1 {
		doc.Pages = 1
	}
	da := doc.DA
	if da == "" {
		da = "/Helv 10 Tf 0 g"
	}

	w := &writer{}
	catalog := w.alloc()
	pages := w.alloc()
	font := w.alloc()
	acroForm := 0
	if !doc.NoAcroForm {
		acroForm = w.alloc()
	}

	pageNrs := make([]int, doc.Pages)
	contentNrs := make([]int, doc.Pages)
	for i := range pageNrs {
		pageNrs[i] = w.alloc()
		contentNrs[i] = w.alloc()
	}

	annots := make([][]string, doc.Pages)
	var fieldRefs []string

	for i, f := range doc.Fields {
		if doc.NoAcroForm {
			break
		}
		ft := f.Type
		if ft == "" {
			ft = "Tx"
		}
		widgets := f.Widgets
		if len(widgets) == 0 {
			y := 700 - float64(i%30)*22
			widgets = []Widget{{Page: 1, Rect: [4]float64{150, y, 450, y + 18}}}
		}

		common := fmt.Sprintf("/FT /%s /T %s /DA %s", ft, pdfString(f.Name), pdfString(da))
		if f.Value != "" {
			common += " /V " + pdfString(f.Value)
		}
		if f.Flags != 0 {
			common += fmt.Sprintf(" /Ff %d", f.Flags)
		}
		if f.MaxLen > 0 {
			common += fmt.Sprintf(" /MaxLen %d", f.MaxLen)
		}

		if len(widgets) == 1 {
			nr := w.alloc()
			wd := widgets[0]
			page := clampPage(wd.Page, doc.Pages)
			w.set(nr, fmt.Sprintf("<< /Type /Annot /Subtype /Widget %s /Rect %s /P %s%s >>",
				common, rect(wd.Rect), ref(pageNrs[page-1]), w.widgetEntries(ft, wd)))
			annots[page-1] = append(annots[page-1], ref(nr))
			fieldRefs = append(fieldRefs, ref(nr))
			continue
		}

		parent := w.alloc()
		var kids []string
		for _, wd := range widgets {
			nr := w.alloc()
			page := clampPage(wd.Page, doc.Pages)
			w.set(nr, fmt.Sprintf("<< /Type /Annot /Subtype /Widget /Parent %s /Rect %s /P %s%s >>",
				ref(parent), rect(wd.Rect), ref(pageNrs[page-1]), w.widgetEntries(ft, wd)))
			annots[page-1] = append(annots[page-1], ref(nr))
			kids = append(kids, ref(nr))
		}
		w.set(parent, fmt.Sprintf("<< %s /Kids [%s] >>", common, strings.Join(kids, " ")))
		fieldRefs = append(fieldRefs, ref(parent))
	}

	kids := make([]string, doc.Pages)
	for i := range pageNrs {
		kids[i] = ref(pageNrs[i])
		page := fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << /Font << /Helv %s >> >> /Contents %s",
			ref(pages), ref(font), ref(contentNrs[i]))
		if len(annots[i]) > 0 {
			page += " /Annots [" + strings.Join(annots[i], " ") + "]"
		}
		w.set(pageNrs[i], page+" >>")

		content := fmt.Sprintf("BT /Helv 14 Tf 72 750 Td (Contrato - pagina %d) Tj ET", i+1)
		w.set(contentNrs[i], fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	w.set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), doc.Pages))
	w.set(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	root := fmt.Sprintf("<< /Type /Catalog /Pages %s", ref(pages))
	if acroForm != 0 {
		root += " /AcroForm " + ref(acroForm)
		w.set(acroForm, fmt.Sprintf("<< /Fields [%s] /DR << /Font << /Helv %s >> >> /DA %s >>",
			strings.Join(fieldRefs, " "), ref(font), pdfString("/Helv 0 Tf 0 g")))
	}
	w.set(catalog, root+" >>")

	return w.bytes(catalog)
}

func (w *writer) bytes(root int) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(w.objects))
	for i, body := range w.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(w.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s >>\nstartxref\n%d\n%%%%EOF\n", len(w.objects)+1, ref(root), xref)
	return buf.Bytes()
}

// CheckMark is the content of the on state appearance of checkboxes
const CheckMark = "0 g 2 2 m 6 0 l 12 12 l f"

// widgetEntries writes the annotation flags and, for checkboxes, an
// appearance with a Yes and an Off state
func (w *writer) widgetEntries(ft string, wd Widget) string {
	flags := wd.Flags
	if flags == 0 {
		flags = 4
	}
	entries := fmt.Sprintf(" /F %d", flags)
	if ft != "Btn" {
		return entries
	}

	width, height := wd.Rect[2]-wd.Rect[0], wd.Rect[3]-wd.Rect[1]
	state := func(content string) int {
		nr := w.alloc()
		w.set(nr, fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 %g %g] /Length %d >>\nstream\n%s\nendstream",
			width, height, len(content), content))
		return nr
	}
	on, off := state(CheckMark), state("")
	return entries + fmt.Sprintf(" /AP << /N << /Yes %s /Off %s >> >> /AS /Off", ref(on), ref(off))
}

func clampPage(p, n int) int {
	if p < 1 {
		return 1
	}
	if p > n {
		return n
	}
	return p
}

func rect(r [4]float64) string {
	return fmt.Sprintf("[%g %g %g %g]", r[0], r[1], r[2], r[3])
}

// pdfString encodes s as a literal string, or as UTF-16BE hex when it is not ASCII
func pdfString(s string) string {
	ascii := true
	for _, r := range s {
		if r > 0x7e || r < 0x20 {
			ascii = false
			break
		}
	}
	if ascii {
		r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
		return "(" + r.Replace(s) + ")"
	}

	var sb strings.Builder
	sb.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&sb, "%04X", u)
	}
	sb.WriteString(">")
	return sb.String()
}
