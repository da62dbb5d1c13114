package descriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetToolDescription(t *testing.T) {
	assert.Equal(t, ContractGenerateDescription, GetToolDescription(ToolContractGenerate))
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_read_file"))
}

func TestGetAllToolNames(t *testing.T) {
	assert.Equal(t, []string{
		ToolContractGenerate,
		ToolContractTemplateFields,
		ToolContractTypes,
		ToolContractVerify,
	}, GetAllToolNames())
}
