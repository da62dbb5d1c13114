package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cesuma/contratos-api/internal/catalog"
	"github.com/cesuma/contratos-api/internal/config"
	"github.com/cesuma/contratos-api/internal/enrich"
	"github.com/cesuma/contratos-api/internal/pdf/form"
	"github.com/cesuma/contratos-api/internal/pdftest"
	"github.com/cesuma/contratos-api/internal/service"
	"github.com/cesuma/contratos-api/internal/templates"
)

type fixture struct {
	server      *Server
	gen         *service.Generator
	templateDir string
	outputDir   string
	logs        *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.LoadDefault()
	require.NoError(t, err)

	templateDir := t.TempDir()
	require.NoError(t, pdftest.WriteCatalogTemplates(templateDir, cat))

	src, err := templates.NewFSSource(templateDir, 1<<20)
	require.NoError(t, err)
	reg, err := templates.NewRegistry(cat, src)
	require.NoError(t, err)

	now := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	gen, err := service.NewGenerator(reg, enrich.New(cat, enrich.WithClock(func() time.Time { return now })),
		nil, nil, nil)
	require.NoError(t, err)

	outputDir := t.TempDir()
	cfg := &config.Config{
		Mode:       config.ModeStdio,
		OutputDir:  outputDir,
		Version:    "1.0.0",
		ServerName: "test-server",
	}

	core, logs := observer.New(zap.DebugLevel)
	s, err := NewServer(cfg, gen, zap.New(core))
	require.NoError(t, err)

	return &fixture{server: s, gen: gen, templateDir: templateDir, outputDir: outputDir, logs: logs}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}

func TestNewServer(t *testing.T) {
	fx := newFixture(t)
	assert.NotNil(t, fx.server.mcpServer)
	assert.Equal(t, fx.outputDir, fx.server.output.Root())

	_, err := NewServer(&config.Config{OutputDir: t.TempDir()}, nil, nil)
	assert.Error(t, err)

	_, err = NewServer(nil, fx.gen, nil)
	assert.Error(t, err)

	_, err = NewServer(&config.Config{}, fx.gen, nil)
	assert.Error(t, err, "empty output directory")
}

func TestToolsList(t *testing.T) {
	fx := newFixture(t)

	resp := fx.server.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"contract_types", "contract_template_fields", "contract_generate", "contract_verify_templates"} {
		assert.Contains(t, string(raw), `"`+name+`"`)
	}
}

func TestHandleContractTypes(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.server.handleContractTypes(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Supported contract types (4)")
	assert.Contains(t, text, "1. doctorado")
	assert.Contains(t, text, "master_propio")
	assert.Contains(t, text, "Resolver: dynamic")
	assert.Contains(t, text, "total=6000.00")
}

func TestHandleTemplateFields(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.server.handleTemplateFields(context.Background(),
		callRequest(map[string]interface{}{"contract_type": "maestria"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "for maestria")
	assert.Contains(t, text, "[text]")
	assert.NotContains(t, text, "Missing from template")

	result, err = fx.server.handleTemplateFields(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = fx.server.handleTemplateFields(context.Background(),
		callRequest(map[string]interface{}{"contract_type": "phd"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "INVALID_CONTRACT_TYPE")
}

func TestHandleGenerate(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.server.handleGenerate(context.Background(), callRequest(map[string]interface{}{
		"contract_type": "doctorado",
		"fields":        `{"nombre_apellidos":"Ana Ruiz","documento_identidad":"X1234567"}`,
		"flatten":       false,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	path := filepath.Join(fx.outputDir, "Contrato_doctorado_Ana_Ruiz.pdf")
	assert.Contains(t, extractTextFromResult(result), path)
	assert.Contains(t, extractTextFromResult(result), "Flattened: false")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	found, err := form.InspectBytes(data)
	require.NoError(t, err)
	values := form.Values(found)
	assert.Equal(t, "Ana Ruiz", values["Nombre y apellidos:"])
	assert.Equal(t, "X1234567", values["DNI/Pasaporte:"])

	assert.Equal(t, 1, fx.logs.FilterMessage("contract written").Len())
}

func TestHandleGenerateObjectFieldsAndFilename(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.server.handleGenerate(context.Background(), callRequest(map[string]interface{}{
		"contract_type": "licenciatura",
		"fields":        map[string]interface{}{"nombre_apellidos": "Luis Gómez", "telefono_movil": 600111222.0},
		"filename":      "lotes/2026/luis",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	_, err = os.Stat(filepath.Join(fx.outputDir, "lotes", "2026", "luis.pdf"))
	assert.NoError(t, err)
}

func TestHandleGenerateErrors(t *testing.T) {
	fx := newFixture(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{
			name: "missing contract type",
			args: map[string]interface{}{},
			want: "contract_type",
		},
		{
			name: "unknown contract type",
			args: map[string]interface{}{"contract_type": "phd"},
			want: "INVALID_CONTRACT_TYPE",
		},
		{
			name: "fields not an object",
			args: map[string]interface{}{"contract_type": "maestria", "fields": `["a"]`},
			want: "fields must be a JSON object",
		},
		{
			name: "nested value",
			args: map[string]interface{}{"contract_type": "maestria", "fields": `{"email":{"a":1}}`},
			want: "email",
		},
		{
			name: "filename escapes output",
			args: map[string]interface{}{"contract_type": "maestria", "filename": "../../escape.pdf"},
			want: "outside configured directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := fx.server.handleGenerate(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			require.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.want)
		})
	}
}

func TestHandleGenerateMissingTemplate(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(fx.templateDir, "contrato_maestria.pdf")))

	result, err := fx.server.handleGenerate(context.Background(),
		callRequest(map[string]interface{}{"contract_type": "maestria"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "TEMPLATE_MISSING")
}

func TestHandleVerify(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.server.handleVerify(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError, extractTextFromResult(result))
	assert.Equal(t, 4, strings.Count(extractTextFromResult(result), "OK "))

	require.NoError(t, os.Remove(filepath.Join(fx.templateDir, "contrato_doctorado.pdf")))
	result, err = fx.server.handleVerify(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "FAILED doctorado")
}

func TestRequestFields(t *testing.T) {
	got, err := requestFields(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = requestFields("  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = requestFields(`{"numero_cuotas": 12}`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("12"), got["numero_cuotas"])

	src := map[string]interface{}{"a": "b"}
	got, err = requestFields(src)
	require.NoError(t, err)
	got["contract_type"] = "x"
	assert.Len(t, src, 1, "argument map is copied")

	_, err = requestFields(42.0)
	assert.Error(t, err)
}

func TestServeReturnsOnCanceledContext(t *testing.T) {
	fx := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	assert.NoError(t, fx.server.Serve(ctx, strings.NewReader(""), &out))
}
