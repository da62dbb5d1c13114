package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cesuma/contratos-api/internal/contract"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// nameList accepts either a single scalar or a sequence of scalars
type nameList []string

func (n *nameList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*n = nameList{node.Value}
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		*n = names
		return nil
	default:
		return fmt.Errorf("line %d: field names must be a string or a list of strings", node.Line)
	}
}

type fileFormat struct {
	ProgramStart  string               `yaml:"program_start"`
	Policies      policiesFormat       `yaml:"policies"`
	ContractTypes map[string]entryFile `yaml:"contract_types"`
}

type policiesFormat struct {
	Fixed  map[string]string `yaml:"fixed"`
	Mirror []struct {
		From string `yaml:"from"`
		To   string `yaml:"to"`
	} `yaml:"mirror"`
}

type entryFile struct {
	Template string              `yaml:"template"`
	Resolver string              `yaml:"resolver"`
	Flatten  *bool               `yaml:"flatten"`
	Fields   map[string]nameList `yaml:"fields"`
	Pricing  *pricingFile        `yaml:"pricing"`
}

type pricingFile struct {
	Total             string `yaml:"total"`
	DownPayment       string `yaml:"down_payment"`
	Installments      int    `yaml:"installments"`
	InstallmentAmount string `yaml:"installment_amount"`
	Modality          string `yaml:"modality"`
}

// LoadDefault parses the catalog embedded in the binary
func LoadDefault() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile parses a catalog from path, or the embedded one when path is empty
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	if _, err := time.Parse(DateLayout, f.ProgramStart); err != nil {
		return nil, fmt.Errorf("program_start %q must be DD/MM/YYYY: %w", f.ProgramStart, err)
	}

	c := &Catalog{
		ProgramStart: f.ProgramStart,
		Policies:     Policies{Fixed: map[string]string{}},
		entries:      make(map[contract.Type]*Entry, len(f.ContractTypes)),
	}
	for k, v := range f.Policies.Fixed {
		c.Policies.Fixed[k] = v
	}
	for i, m := range f.Policies.Mirror {
		if m.From == "" || m.To == "" {
			return nil, fmt.Errorf("policies.mirror[%d]: from and to are required", i)
		}
		c.Policies.Mirror = append(c.Policies.Mirror, Mirror{From: m.From, To: m.To})
	}

	for rawType, ef := range f.ContractTypes {
		t := contract.Type(rawType)
		if !t.IsKnown() {
			return nil, fmt.Errorf("contract type %q is not part of the supported set", rawType)
		}
		entry, err := buildEntry(t, ef)
		if err != nil {
			return nil, fmt.Errorf("contract type %s: %w", t, err)
		}
		c.entries[t] = entry
	}

	var missing []string
	for _, t := range contract.AllTypes() {
		if _, ok := c.entries[t]; !ok {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("catalog has no entry for: %s", strings.Join(missing, ", "))
	}

	return c, nil
}

func buildEntry(t contract.Type, ef entryFile) (*Entry, error) {
	if strings.TrimSpace(ef.Template) == "" {
		return nil, errors.New("template is required")
	}

	strategy := Strategy(ef.Resolver)
	if strategy == "" {
		strategy = StrategyStatic
	}
	if strategy != StrategyStatic && strategy != StrategyDynamic {
		return nil, fmt.Errorf("resolver must be %q or %q, got %q", StrategyStatic, StrategyDynamic, ef.Resolver)
	}

	flatten := true
	if ef.Flatten != nil {
		flatten = *ef.Flatten
	}

	dict := make(FieldDictionary, len(ef.Fields))
	for canonical, names := range ef.Fields {
		if strings.TrimSpace(canonical) == "" {
			return nil, errors.New("empty canonical field name")
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("field %s has no physical names", canonical)
		}
		for _, n := range names {
			if n == "" {
				return nil, fmt.Errorf("field %s has an empty physical name", canonical)
			}
		}
		dict[canonical] = append([]string(nil), names...)
	}
	if strategy == StrategyStatic && len(dict) == 0 {
		return nil, errors.New("static resolver requires a field dictionary")
	}

	entry := &Entry{
		Type:     t,
		Template: ef.Template,
		Resolver: strategy,
		Flatten:  flatten,
		Fields:   dict,
	}

	if ef.Pricing != nil {
		tier, err := buildPricing(ef.Pricing)
		if err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}
		entry.Pricing = tier
	}

	return entry, nil
}

func buildPricing(pf *pricingFile) (*PricingTier, error) {
	total, err := decimal.NewFromString(pf.Total)
	if err != nil {
		return nil, fmt.Errorf("total: %w", err)
	}
	down, err := decimal.NewFromString(pf.DownPayment)
	if err != nil {
		return nil, fmt.Errorf("down_payment: %w", err)
	}
	amount, err := decimal.NewFromString(pf.InstallmentAmount)
	if err != nil {
		return nil, fmt.Errorf("installment_amount: %w", err)
	}

	tier := &PricingTier{
		Total:             total,
		DownPayment:       down,
		Installments:      pf.Installments,
		InstallmentAmount: amount,
		Modality:          pf.Modality,
	}
	if err := tier.Validate(); err != nil {
		return nil, err
	}
	return tier, nil
}
