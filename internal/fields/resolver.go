// Package fields turns an enriched request into the physical field name to
// value map the assembler writes into a template.
package fields

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cesuma/contratos-api/internal/catalog"
)

// aliasDelimiter is the trailing punctuation templates disagree on
const aliasDelimiter = ":"

// Lister lists the physical field names of the template being filled. It is
// only called by strategies that introspect the template.
type Lister func() ([]string, error)

// FieldResolver maps enriched values onto physical field names
type FieldResolver interface {
	Resolve(values map[string]string, dict catalog.FieldDictionary, list Lister) (map[string]string, error)
}

// ForStrategy returns the resolver of a catalog strategy
func ForStrategy(s catalog.Strategy) (FieldResolver, error) {
	switch s {
	case catalog.StrategyStatic, "":
		return StaticResolver{}, nil
	case catalog.StrategyDynamic:
		return DynamicResolver{}, nil
	default:
		return nil, fmt.Errorf("unknown resolver strategy %q", s)
	}
}

// StaticResolver emits each canonical value under every configured physical
// name and its alias variant. Canonical keys outside the dictionary are
// ignored; absent values become "".
type StaticResolver struct{}

// Resolve implements FieldResolver
func (StaticResolver) Resolve(values map[string]string, dict catalog.FieldDictionary, _ Lister) (map[string]string, error) {
	return resolveStatic(values, dict), nil
}

func resolveStatic(values map[string]string, dict catalog.FieldDictionary) map[string]string {
	out := make(map[string]string)
	explicit := make(map[string]struct{})

	canonical := dict.CanonicalKeys()
	for _, key := range canonical {
		for _, name := range dict[key] {
			out[name] = values[key]
			explicit[name] = struct{}{}
		}
	}

	for _, key := range canonical {
		for _, name := range dict[key] {
			variant := AliasVariant(name)
			if variant == "" {
				continue
			}
			if _, configured := explicit[variant]; configured {
				continue
			}
			if _, taken := out[variant]; taken {
				continue
			}
			out[variant] = values[key]
		}
	}
	return out
}

// AliasVariant returns the name with its trailing delimiter removed, or with
// one added when it has none
func AliasVariant(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if strings.HasSuffix(trimmed, aliasDelimiter) {
		base := strings.TrimSpace(strings.TrimSuffix(trimmed, aliasDelimiter))
		if base == "" {
			return ""
		}
		return base
	}
	return trimmed + aliasDelimiter
}

// DynamicResolver discovers the template's field names and matches them to
// request keys by their normalized form. Dictionary entries, if any, are
// applied first and win over discovered matches.
type DynamicResolver struct{}

// Resolve implements FieldResolver
func (DynamicResolver) Resolve(values map[string]string, dict catalog.FieldDictionary, list Lister) (map[string]string, error) {
	if list == nil {
		return nil, fmt.Errorf("dynamic resolution needs the template field names")
	}
	names, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list template fields: %w", err)
	}

	out := resolveStatic(values, dict)

	// sorted so that colliding keys resolve the same way every time
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	index := make(map[string]string, len(keys))
	for _, k := range keys {
		n := Normalize(k)
		if n == "" {
			continue
		}
		if _, seen := index[n]; !seen {
			index[n] = values[k]
		}
	}

	for _, name := range names {
		if _, set := out[name]; set {
			continue
		}
		if v, ok := index[Normalize(name)]; ok {
			out[name] = v
		}
	}
	return out, nil
}
