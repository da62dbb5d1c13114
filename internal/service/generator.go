// Package service runs the contract pipeline: resolve the template, enrich
// the request, map values onto form fields and assemble the document.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
	"github.com/cesuma/contratos-api/internal/enrich"
	"github.com/cesuma/contratos-api/internal/fields"
	"github.com/cesuma/contratos-api/internal/pdf"
	"github.com/cesuma/contratos-api/internal/pdf/assemble"
	"github.com/cesuma/contratos-api/internal/pdf/form"
	"github.com/cesuma/contratos-api/internal/pdf/stability"
	"github.com/cesuma/contratos-api/internal/templates"
)

// ContentType of generated documents
const ContentType = "application/pdf"

// Document is a generated contract ready for delivery
type Document struct {
	Bytes        []byte
	Filename     string
	ContentType  string
	ContractType contract.Type
	Flattened    bool
	// Filled counts the widgets that received a value
	Filled int
}

// GenerateOptions tune a single generation
type GenerateOptions struct {
	// Flatten overrides the contract type's flatten setting when set
	Flatten *bool
}

// Generator produces contracts. It is safe for concurrent use; every call
// works on its own copy of the template.
type Generator struct {
	registry  *templates.Registry
	enricher  *enrich.Enricher
	assembler *assemble.Assembler
	validator *pdf.Validator
	guard     *stability.Guard
	logger    *zap.Logger
}

// NewGenerator wires the pipeline components. A nil logger discards logs.
func NewGenerator(registry *templates.Registry, enricher *enrich.Enricher, assembler *assemble.Assembler,
	validator *pdf.Validator, logger *zap.Logger) (*Generator, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if enricher == nil {
		enricher = enrich.New(registry.Catalog())
	}
	if assembler == nil {
		assembler = assemble.New()
	}
	if validator == nil {
		validator = pdf.NewValidator(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		registry:  registry,
		enricher:  enricher,
		assembler: assembler,
		validator: validator,
		guard:     stability.NewGuard(stability.DefaultConfig(), logger),
		logger:    logger,
	}, nil
}

// Catalog returns the contract tables the generator serves
func (g *Generator) Catalog() *catalog.Catalog {
	return g.registry.Catalog()
}

// Generate produces the contract described by req
func (g *Generator) Generate(ctx context.Context, req *contract.Request, opts GenerateOptions) (*Document, error) {
	if req == nil {
		return nil, contract.NewInvalidRequest("request body is required", nil)
	}
	start := time.Now()

	ref, err := g.registry.Resolve(ctx, req.ContractType)
	if err != nil {
		return nil, err
	}
	logger := g.logger.With(zap.String("contract_type", ref.Type.String()), zap.String("template", ref.Location))

	tmpl, err := g.registry.Load(ctx, ref)
	if err != nil {
		return nil, err
	}

	values := g.enricher.Enrich(req.Fields, ref.Type)

	resolved, err := stability.Do(ctx, g.guard, "resolve "+ref.Name, func() (map[string]string, error) {
		return g.resolve(ref, tmpl, values)
	})
	if err != nil {
		return nil, asAssemblyError("resolve fields", err)
	}

	flatten := ref.Entry.Flatten
	if opts.Flatten != nil {
		flatten = *opts.Flatten
	}

	res, err := stability.Do(ctx, g.guard, "assemble "+ref.Name, func() (*assemble.Result, error) {
		return g.assembler.AssembleResult(tmpl, resolved, flatten)
	})
	if err != nil {
		logger.Error("contract assembly failed", zap.Error(err))
		return nil, asAssemblyError("assemble contract", err)
	}

	doc := &Document{
		Bytes:        res.Bytes,
		Filename:     contract.Filename(ref.Type, req.StudentName()),
		ContentType:  ContentType,
		ContractType: ref.Type,
		Flattened:    res.Flattened,
		Filled:       res.Filled,
	}

	logger.Info("contract generated",
		zap.String("filename", doc.Filename),
		zap.Bool("flattened", doc.Flattened),
		zap.Int("widgets_filled", res.Filled),
		zap.Int("widgets", res.Widgets),
		zap.Int("bytes", len(doc.Bytes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc, nil
}

// RecoveredPanics counts the pdf operations that panicked and were turned
// into errors
func (g *Generator) RecoveredPanics() int {
	return g.guard.PanicCount()
}

// asAssemblyError keeps typed errors and wraps anything else
func asAssemblyError(op string, err error) error {
	var ce *contract.Error
	if errors.As(err, &ce) {
		return err
	}
	return contract.NewAssemblyError(op, err)
}

func (g *Generator) resolve(ref *templates.Ref, tmpl []byte, values map[string]string) (map[string]string, error) {
	resolver, err := fields.ForStrategy(ref.Entry.Resolver)
	if err != nil {
		return nil, contract.NewAssemblyError("select field resolver", err)
	}

	list := func() ([]string, error) {
		found, err := form.InspectBytes(tmpl)
		if err != nil {
			return nil, err
		}
		return form.Names(found), nil
	}

	resolved, err := resolver.Resolve(values, ref.Entry.Fields, list)
	if err != nil {
		return nil, contract.NewAssemblyError("resolve fields", err)
	}
	return resolved, nil
}

// TypeInfo describes a supported contract type
type TypeInfo struct {
	Type     contract.Type     `json:"type"`
	Template string            `json:"template"`
	Flatten  bool              `json:"flatten"`
	Resolver catalog.Strategy  `json:"resolver"`
	Pricing  map[string]string `json:"pricing,omitempty"`
}

// ContractTypes lists the permitted contract types in order
func (g *Generator) ContractTypes() []TypeInfo {
	entries := g.Catalog().Entries()
	out := make([]TypeInfo, 0, len(entries))
	for _, e := range entries {
		info := TypeInfo{
			Type:     e.Type,
			Template: e.Template,
			Flatten:  e.Flatten,
			Resolver: e.Resolver,
		}
		if e.Pricing != nil {
			info.Pricing = e.Pricing.Values()
		}
		out = append(out, info)
	}
	return out
}

// TemplateFields describes the form of a contract type's template
type TemplateFields struct {
	Type     contract.Type `json:"contract_type"`
	Template string        `json:"template"`
	Location string        `json:"location"`
	Fields   []form.Field  `json:"fields"`
	// Missing lists configured physical names absent from the template
	Missing []string `json:"missing,omitempty"`
	// Unmapped lists template fields no dictionary entry or alias reaches
	Unmapped []string `json:"unmapped,omitempty"`
}

// TemplateFields introspects the template of raw
func (g *Generator) TemplateFields(ctx context.Context, raw string) (*TemplateFields, error) {
	ref, err := g.registry.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	tmpl, err := g.registry.Load(ctx, ref)
	if err != nil {
		return nil, err
	}

	found, err := stability.Do(ctx, g.guard, "inspect "+ref.Name, func() ([]form.Field, error) {
		return form.InspectBytes(tmpl)
	})
	if err != nil {
		return nil, contract.NewAssemblyError(fmt.Sprintf("inspect template %s", ref.Name), err)
	}

	missing, unmapped := compareNames(ref.Entry, form.Names(found))
	return &TemplateFields{
		Type:     ref.Type,
		Template: ref.Name,
		Location: ref.Location,
		Fields:   found,
		Missing:  missing,
		Unmapped: unmapped,
	}, nil
}

// compareNames matches the dictionary of entry against the template field
// names. Dynamic entries only report unmapped fields when a dictionary is set.
func compareNames(entry *catalog.Entry, names []string) (missing, unmapped []string) {
	inTemplate := make(map[string]struct{}, len(names))
	for _, n := range names {
		inTemplate[n] = struct{}{}
	}

	reachable := make(map[string]struct{})
	for _, n := range entry.Fields.PhysicalNames() {
		reachable[n] = struct{}{}
		if v := fields.AliasVariant(n); v != "" {
			reachable[v] = struct{}{}
		}
		if _, ok := inTemplate[n]; ok {
			continue
		}
		if _, ok := inTemplate[fields.AliasVariant(n)]; ok {
			continue
		}
		missing = append(missing, n)
	}

	if entry.Resolver == catalog.StrategyDynamic && len(entry.Fields) == 0 {
		return missing, nil
	}
	for _, n := range names {
		if _, ok := reachable[n]; !ok {
			unmapped = append(unmapped, n)
		}
	}
	return missing, unmapped
}
