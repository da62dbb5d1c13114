package assemble

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// flatten draws every widget appearance into its page content, removes the
// widget annotations and drops the AcroForm
func (d *document) flatten() error {
	byPage := make(map[int][]*widget)
	for _, w := range d.widgets {
		byPage[w.page] = append(byPage[w.page], w)
	}

	for pageNr := 1; pageNr <= d.ctx.PageCount; pageNr++ {
		widgets := byPage[pageNr]
		if len(widgets) == 0 {
			continue
		}
		if err := d.flattenPage(pageNr, widgets); err != nil {
			return fmt.Errorf("page %d: %w", pageNr, err)
		}
	}

	rootDict, err := d.ctx.Catalog()
	if err != nil {
		return err
	}
	delete(rootDict, "AcroForm")
	d.acroForm = nil
	return nil
}

func (d *document) flattenPage(pageNr int, widgets []*widget) error {
	pageDict, _, _, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("missing page dictionary")
	}

	xobjects, err := d.pageXObjects(pageDict)
	if err != nil {
		return err
	}

	var draw bytes.Buffer
	draw.WriteString("Q\n")
	for i, w := range widgets {
		if w.appearance == nil || w.hidden() {
			continue
		}
		matrix, err := d.placement(w)
		if err != nil {
			return err
		}
		if matrix == "" {
			continue
		}

		name := uniqueName(xobjects, fmt.Sprintf("FlatP%dW%d", pageNr, i+1))
		xobjects[name] = w.appearance
		fmt.Fprintf(&draw, "q\n%s cm\n/%s Do\nQ\n", matrix, name)
	}

	if err := d.wrapContents(pageDict, draw.Bytes()); err != nil {
		return err
	}

	return d.removeWidgets(pageDict)
}

// pageXObjects returns the page's XObject resource dictionary, creating the
// page's own Resources when they are inherited or missing
func (d *document) pageXObjects(pageDict types.Dict) (types.Dict, error) {
	var resources types.Dict

	if resObj, found := pageDict.Find("Resources"); found {
		res, err := d.ctx.DereferenceDict(resObj)
		if err != nil {
			return nil, err
		}
		resources = res
	}
	if resources == nil {
		resources = d.inheritedResources(pageDict)
		pageDict["Resources"] = resources
	}

	if xObj, found := resources.Find("XObject"); found {
		xobjects, err := d.ctx.DereferenceDict(xObj)
		if err != nil {
			return nil, err
		}
		if xobjects != nil {
			return xobjects, nil
		}
	}

	xobjects := types.NewDict()
	resources["XObject"] = xobjects
	return xobjects, nil
}

// inheritedResources copies the nearest ancestor's Resources so that the
// page can extend them without touching its siblings
func (d *document) inheritedResources(pageDict types.Dict) types.Dict {
	cur := pageDict
	for depth := 0; depth < 32; depth++ {
		parentObj, found := cur.Find("Parent")
		if !found {
			break
		}
		parent, err := d.ctx.DereferenceDict(parentObj)
		if err != nil || parent == nil {
			break
		}
		if resObj, found := parent.Find("Resources"); found {
			if res, err := d.ctx.DereferenceDict(resObj); err == nil && res != nil {
				clone := types.NewDict()
				for k, v := range res {
					clone[k] = v
				}
				if xObj, found := clone.Find("XObject"); found {
					if xobjects, err := d.ctx.DereferenceDict(xObj); err == nil && xobjects != nil {
						copied := types.NewDict()
						for k, v := range xobjects {
							copied[k] = v
						}
						clone["XObject"] = copied
					}
				}
				return clone
			}
		}
		cur = parent
	}
	return types.NewDict()
}

// placement maps the appearance's bounding box onto the widget rectangle
func (d *document) placement(w *widget) (string, error) {
	// the bool result is the xref entry's previous Valid flag, not a type check
	sd, _, err := d.ctx.DereferenceStreamDict(w.appearance)
	if err != nil {
		return "", err
	}
	if sd == nil {
		return "", nil
	}

	bbox := [4]float64{0, 0, w.width(), w.height()}
	if bboxObj, found := sd.Find("BBox"); found {
		arr, err := d.ctx.DereferenceArray(bboxObj)
		if err == nil && len(arr) == 4 {
			for i, o := range arr {
				if f, err := d.ctx.DereferenceNumber(o); err == nil {
					bbox[i] = f
				}
			}
		}
	}

	bw, bh := bbox[2]-bbox[0], bbox[3]-bbox[1]
	if bw == 0 || bh == 0 {
		return "", nil
	}
	sx, sy := w.width()/bw, w.height()/bh
	tx := w.rect[0] - bbox[0]*sx
	ty := w.rect[1] - bbox[1]*sy

	return fmt.Sprintf("%s 0 0 %s %s %s", num(sx), num(sy), num(tx), num(ty)), nil
}

// wrapContents saves the graphics state around the existing page content and
// appends draw after it
func (d *document) wrapContents(pageDict types.Dict, draw []byte) error {
	prefix, err := d.newContentStream([]byte("q\n"))
	if err != nil {
		return err
	}
	suffix, err := d.newContentStream(draw)
	if err != nil {
		return err
	}

	contents := types.Array{*prefix}
	if obj, found := pageDict.Find("Contents"); found {
		switch c := obj.(type) {
		case types.Array:
			contents = append(contents, c...)
		case types.IndirectRef:
			if arr, err := d.ctx.DereferenceArray(c); err == nil && arr != nil {
				contents = append(contents, arr...)
			} else {
				contents = append(contents, c)
			}
		default:
			contents = append(contents, c)
		}
	}
	contents = append(contents, *suffix)

	pageDict["Contents"] = contents
	return nil
}

func (d *document) newContentStream(content []byte) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}

// removeWidgets drops widget annotations from the page, keeping the others
func (d *document) removeWidgets(pageDict types.Dict) error {
	annotsObj, found := pageDict.Find("Annots")
	if !found {
		return nil
	}
	annots, err := d.ctx.DereferenceArray(annotsObj)
	if err != nil {
		return err
	}

	kept := types.Array{}
	for _, a := range annots {
		annot, err := d.ctx.DereferenceDict(a)
		if err == nil && annot != nil && isWidget(d.ctx, annot) {
			continue
		}
		kept = append(kept, a)
	}

	if len(kept) == 0 {
		delete(pageDict, "Annots")
		return nil
	}
	pageDict["Annots"] = kept
	return nil
}

func uniqueName(dict types.Dict, base string) string {
	name := base
	for i := 1; ; i++ {
		if _, taken := dict[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s_%d", base, i)
	}
}
