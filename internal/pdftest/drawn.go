package pdftest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var drawOp = regexp.MustCompile(`/(\S+) Do`)

// Drawn returns, per page, the decoded content of every XObject the page
// content draws with Do
func Drawn(data []byte) ([][]string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}

	pages := make([][]string, ctx.PageCount)
	for i := range pages {
		if pages[i], err = drawnOnPage(ctx, i+1); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return pages, nil
}

// DrawnText joins everything Drawn finds on all pages
func DrawnText(data []byte) (string, error) {
	pages, err := Drawn(data)
	if err != nil {
		return "", err
	}
	var all []string
	for _, p := range pages {
		all = append(all, p...)
	}
	return strings.Join(all, "\n"), nil
}

func drawnOnPage(ctx *model.Context, pageNr int) ([]string, error) {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil {
		return nil, fmt.Errorf("missing page dictionary")
	}

	var content bytes.Buffer
	if contentsObj, found := pageDict.Find("Contents"); found {
		streams, err := ctx.DereferenceArray(contentsObj)
		if err != nil || streams == nil {
			streams = types.Array{contentsObj}
		}
		for _, o := range streams {
			data, err := decodeStream(ctx, o)
			if err != nil {
				return nil, err
			}
			content.Write(data)
			content.WriteByte('\n')
		}
	}

	var xobjects types.Dict
	if resObj, found := pageDict.Find("Resources"); found {
		resources, err := ctx.DereferenceDict(resObj)
		if err != nil {
			return nil, err
		}
		if xObj, found := resources.Find("XObject"); found {
			if xobjects, err = ctx.DereferenceDict(xObj); err != nil {
				return nil, err
			}
		}
	}

	var drawn []string
	for _, m := range drawOp.FindAllStringSubmatch(content.String(), -1) {
		obj, found := xobjects.Find(m[1])
		if !found {
			return nil, fmt.Errorf("XObject %s is not in the page resources", m[1])
		}
		data, err := decodeStream(ctx, obj)
		if err != nil {
			return nil, fmt.Errorf("XObject %s: %w", m[1], err)
		}
		drawn = append(drawn, string(data))
	}
	return drawn, nil
}

func decodeStream(ctx *model.Context, o types.Object) ([]byte, error) {
	sd, _, err := ctx.DereferenceStreamDict(o)
	if err != nil {
		return nil, err
	}
	if sd == nil {
		return nil, fmt.Errorf("missing stream")
	}
	if err := sd.Decode(); err != nil {
		return nil, err
	}
	return sd.Content, nil
}
