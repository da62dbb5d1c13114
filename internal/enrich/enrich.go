// Package enrich derives computed values and applies deployment policies on
// top of caller-supplied contract data.
package enrich

import (
	"strings"
	"time"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
)

// Enricher turns a request into the canonical value map consumed by the
// field resolvers. It is safe for concurrent use.
type Enricher struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// Option configures an Enricher
type Option func(*Enricher)

// WithClock replaces the wall clock used for the generation date
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		e.now = now
	}
}

// New creates an Enricher over cat
func New(cat *catalog.Catalog, opts ...Option) *Enricher {
	e := &Enricher{catalog: cat, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich runs the enrichment steps in their fixed order; each step may
// overwrite keys written by the previous ones:
//
//  1. caller fields, verbatim
//  2. generation date and program start date
//  3. policy overrides (fixed values, mirrored fields)
//  4. pricing tier of the contract type
//  5. empty-string backfill of every required key
func (e *Enricher) Enrich(fields map[string]string, t contract.Type) map[string]string {
	out := make(map[string]string, len(fields)+16)
	for k, v := range fields {
		out[k] = v
	}

	out[catalog.KeyContractDate] = e.now().Format(catalog.DateLayout)
	out[catalog.KeyProgramStart] = e.catalog.ProgramStart

	e.applyPolicies(out)

	if entry, ok := e.catalog.Entry(t); ok && entry.Pricing != nil {
		for k, v := range entry.Pricing.Values() {
			out[k] = v
		}
	}

	for _, k := range e.catalog.RequiredKeys(t) {
		if _, ok := out[k]; !ok {
			out[k] = ""
		}
	}

	return out
}

func (e *Enricher) applyPolicies(out map[string]string) {
	for k, v := range e.catalog.Policies.Fixed {
		out[k] = v
	}
	for _, m := range e.catalog.Policies.Mirror {
		if strings.TrimSpace(out[m.To]) != "" {
			continue
		}
		if src := out[m.From]; src != "" {
			out[m.To] = src
		}
	}
}
