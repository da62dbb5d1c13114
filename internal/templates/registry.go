// Package templates resolves contract types to template documents and loads
// them from a backing store.
package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/contract"
)

// Ref is a resolved, existence-checked template
type Ref struct {
	Type     contract.Type
	Entry    *catalog.Entry
	Name     string
	Location string
}

// Registry maps contract types onto templates held by a Source
type Registry struct {
	catalog *catalog.Catalog
	source  Source
}

// NewRegistry creates a registry over cat and src
func NewRegistry(cat *catalog.Catalog, src Source) (*Registry, error) {
	if cat == nil {
		return nil, errors.New("catalog cannot be nil")
	}
	if src == nil {
		return nil, errors.New("template source cannot be nil")
	}
	return &Registry{catalog: cat, source: src}, nil
}

// Catalog returns the tables behind the registry
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}

// Resolve validates raw against the closed set of contract types and checks
// that the registered template exists. Unknown types fail before any I/O.
func (r *Registry) Resolve(ctx context.Context, raw string) (*Ref, error) {
	t, err := contract.ParseType(raw)
	if err != nil {
		return nil, err
	}

	entry, ok := r.catalog.Entry(t)
	if !ok {
		return nil, contract.NewInvalidContractType(raw, r.catalog.Types())
	}

	exists, err := r.source.Exists(ctx, entry.Template)
	if err != nil {
		return nil, contract.NewTemplateMissing(t, entry.Template, err)
	}
	if !exists {
		return nil, contract.NewTemplateMissing(t, entry.Template, nil)
	}

	return &Ref{
		Type:     t,
		Entry:    entry,
		Name:     entry.Template,
		Location: r.source.Location(entry.Template),
	}, nil
}

// Load reads the template bytes. Every call returns a fresh copy.
func (r *Registry) Load(ctx context.Context, ref *Ref) ([]byte, error) {
	data, err := r.source.Read(ctx, ref.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, contract.NewTemplateMissing(ref.Type, ref.Name, err)
		}
		return nil, contract.NewAssemblyError(fmt.Sprintf("failed to load template %s", ref.Name), err)
	}
	return data, nil
}
