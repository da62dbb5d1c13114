// Package catalog holds the closed, read-only configuration tables of the
// contract service: which template serves each contract type, how request
// fields map onto template fields, pricing tiers and deployment policies.
// A Catalog is built once at start-up and shared by every request.
package catalog

import (
	"sort"

	"github.com/cesuma/contratos-api/internal/contract"
)

// Canonical keys injected by enrichment
const (
	KeyContractDate      = "fecha_contrato"
	KeyProgramStart      = "fecha_inicio"
	KeyTotal             = "precio_total"
	KeyDownPayment       = "pago_inicial"
	KeyInstallments      = "numero_cuotas"
	KeyInstallmentAmount = "importe_cuota"
	KeyPaymentModality   = "modalidad_pago"
)

// DateLayout is the day/month/year layout used for every injected date
const DateLayout = "02/01/2006"

// Strategy selects how request fields are matched to template fields
type Strategy string

const (
	StrategyStatic  Strategy = "static"
	StrategyDynamic Strategy = "dynamic"
)

// FieldDictionary maps a canonical request key to the physical field names
// that receive its value
type FieldDictionary map[string][]string

// CanonicalKeys returns the dictionary keys in sorted order
func (d FieldDictionary) CanonicalKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PhysicalNames returns every configured physical name, sorted and deduplicated
func (d FieldDictionary) PhysicalNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, aliases := range d {
		for _, name := range aliases {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Entry is the registry record of one contract type
type Entry struct {
	Type     contract.Type
	Template string
	Resolver Strategy
	Flatten  bool
	Fields   FieldDictionary
	Pricing  *PricingTier
}

// Mirror copies From into To when To was not supplied
type Mirror struct {
	From string
	To   string
}

// Policies are deployment overrides applied on top of caller data
type Policies struct {
	Fixed  map[string]string
	Mirror []Mirror
}

// GovernedKeys lists every key a policy may write
func (p Policies) GovernedKeys() []string {
	keys := make([]string, 0, len(p.Fixed)+len(p.Mirror))
	for k := range p.Fixed {
		keys = append(keys, k)
	}
	for _, m := range p.Mirror {
		keys = append(keys, m.To)
	}
	sort.Strings(keys)
	return keys
}

// Catalog is the immutable set of tables loaded at start-up
type Catalog struct {
	ProgramStart string
	Policies     Policies
	entries      map[contract.Type]*Entry
}

// Entry returns the registry record for t
func (c *Catalog) Entry(t contract.Type) (*Entry, bool) {
	e, ok := c.entries[t]
	return e, ok
}

// Types returns the contract types present in the catalog, sorted
func (c *Catalog) Types() []contract.Type {
	types := make([]contract.Type, 0, len(c.entries))
	for t := range c.entries {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Entries returns every registry record ordered by type
func (c *Catalog) Entries() []*Entry {
	out := make([]*Entry, 0, len(c.entries))
	for _, t := range c.Types() {
		out = append(out, c.entries[t])
	}
	return out
}

// RequiredKeys lists the canonical keys that must exist (possibly empty)
// after enrichment for contract type t
func (c *Catalog) RequiredKeys(t contract.Type) []string {
	set := map[string]struct{}{
		KeyContractDate: {},
		KeyProgramStart: {},
	}
	for _, k := range c.Policies.GovernedKeys() {
		set[k] = struct{}{}
	}
	if e, ok := c.entries[t]; ok {
		for k := range e.Fields {
			set[k] = struct{}{}
		}
		if e.Pricing != nil {
			for k := range e.Pricing.Values() {
				set[k] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
