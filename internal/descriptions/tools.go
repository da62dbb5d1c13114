package descriptions

import "sort"

// Tool names exposed by the MCP server
const (
	ToolContractTypes          = "contract_types"
	ToolContractTemplateFields = "contract_template_fields"
	ToolContractGenerate       = "contract_generate"
	ToolContractVerify         = "contract_verify_templates"
)

const (
	ContractTypesDescription = `List the contract types this service can generate.

**When to use:** Before generating a contract, to learn which contract_type values are accepted and which template each one fills.

**Returns:** One entry per type (doctorado, maestria, licenciatura, master_propio) with its template file, whether the output is flattened, the field resolver strategy and the fixed pricing defaults when the type has them.`

	ContractTemplateFieldsDescription = `Inspect the form fields of a contract type's template.

**When to use:** Checking that a template still matches the configured field dictionary, or learning which physical field names a template exposes.

**Examples:**
• "Which fields does the maestria template have?"
• "Is any configured field missing from the doctorado template?"

**Returns:** Every field with its type, current value and pages, plus the configured names missing from the template and the template fields no configured key reaches.`

	ContractGenerateDescription = `Generate a filled contract PDF and write it to the output directory.

**When to use:** Producing a contract for a student from request fields.

**Arguments:** contract_type is required. fields is a JSON object with the request keys, for example {"nombre_apellidos":"Ana Ruiz","documento_identidad":"X1234567"}. flatten overrides the type's default. filename overrides the generated Contrato_<type>_<name>.pdf.

**Behavior:** Dates, fixed pricing and payment plans are filled in automatically; caller values for governed keys are replaced.`

	ContractVerifyDescription = `Check every configured template: presence, PDF validity and field coverage.

**When to use:** After deploying new templates or editing the field catalog.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolContractTypes:          ContractTypesDescription,
	ToolContractTemplateFields: ContractTemplateFieldsDescription,
	ToolContractGenerate:       ContractGenerateDescription,
	ToolContractVerify:         ContractVerifyDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
