package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cesuma/contratos-api/internal/contract"
	"github.com/cesuma/contratos-api/internal/pdf"
	"github.com/cesuma/contratos-api/internal/pdf/stability"
)

// Verification is the start-up check of one contract type
type Verification struct {
	Type     contract.Type       `json:"contract_type"`
	Location string              `json:"location"`
	Report   *pdf.TemplateReport `json:"report,omitempty"`
	Missing  []string            `json:"missing,omitempty"`
	Unmapped []string            `json:"unmapped,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// OK reports whether the template can serve requests
func (v *Verification) OK() bool {
	return v.Error == "" && v.Report != nil && v.Report.Valid
}

// Verify checks every registered template: it exists, opens as a PDF and its
// fields line up with the dictionary. Naming mismatches are logged; missing or
// unreadable templates make the returned error non-nil.
func (g *Generator) Verify(ctx context.Context) ([]Verification, error) {
	var (
		results []Verification
		errs    []error
	)

	for _, t := range g.Catalog().Types() {
		v := g.verifyType(ctx, t)
		results = append(results, v)

		logger := g.logger.With(zap.String("contract_type", t.String()), zap.String("template", v.Location))
		switch {
		case !v.OK():
			logger.Error("template verification failed", zap.String("error", v.Error))
			errs = append(errs, fmt.Errorf("%s: %s", t, v.Error))
		case len(v.Missing) > 0 || len(v.Unmapped) > 0:
			logger.Warn("template fields do not match the dictionary",
				zap.Strings("missing", v.Missing),
				zap.Strings("unmapped", v.Unmapped),
			)
		default:
			logger.Info("template verified", zap.Int("pages", v.Report.Pages), zap.Int("fields", len(v.Report.Fields)))
		}
	}

	return results, errors.Join(errs...)
}

func (g *Generator) verifyType(ctx context.Context, t contract.Type) Verification {
	v := Verification{Type: t}

	ref, err := g.registry.Resolve(ctx, t.String())
	if err != nil {
		if entry, ok := g.Catalog().Entry(t); ok {
			v.Location = entry.Template
		}
		v.Error = err.Error()
		return v
	}
	v.Location = ref.Location

	tmpl, err := g.registry.Load(ctx, ref)
	if err != nil {
		v.Error = err.Error()
		return v
	}

	report, err := stability.Do(ctx, g.guard, "validate "+ref.Name, func() (*pdf.TemplateReport, error) {
		return g.validator.ValidateTemplate(ref.Name, tmpl), nil
	})
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Report = report
	if !v.Report.Valid {
		v.Error = v.Report.Message
		return v
	}

	v.Missing, v.Unmapped = compareNames(ref.Entry, v.Report.Fields)
	return v
}
