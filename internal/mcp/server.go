package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/cesuma/contratos-api/internal/config"
	"github.com/cesuma/contratos-api/internal/contract"
	"github.com/cesuma/contratos-api/internal/descriptions"
	"github.com/cesuma/contratos-api/internal/security"
	"github.com/cesuma/contratos-api/internal/service"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	gen       *service.Generator
	output    *security.PathValidator
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance. Generated contracts are
// written below cfg.OutputDir.
func NewServer(cfg *config.Config, gen *service.Generator, logger *zap.Logger) (*Server, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	output, err := security.NewPathValidator(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		gen:       gen,
		output:    output,
		logger:    logger.Named("mcp"),
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolContractTypes,
		mcp.WithDescription(descriptions.ContractTypesDescription),
	), s.handleContractTypes)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolContractTemplateFields,
		mcp.WithDescription(descriptions.ContractTemplateFieldsDescription),
		mcp.WithString("contract_type",
			mcp.Required(),
			mcp.Description("Contract type whose template is inspected"),
		),
	), s.handleTemplateFields)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolContractGenerate,
		mcp.WithDescription(descriptions.ContractGenerateDescription),
		mcp.WithString("contract_type",
			mcp.Required(),
			mcp.Description("One of doctorado, maestria, licenciatura, master_propio"),
		),
		mcp.WithString("fields",
			mcp.Description("JSON object with the request fields"),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Override whether the form is flattened"),
		),
		mcp.WithString("filename",
			mcp.Description("Output file name relative to the output directory"),
		),
	), s.handleGenerate)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolContractVerify,
		mcp.WithDescription(descriptions.ContractVerifyDescription),
	), s.handleVerify)
}

func (s *Server) handleContractTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types := s.gen.ContractTypes()

	var b strings.Builder
	fmt.Fprintf(&b, "Supported contract types (%d):\n", len(types))
	for i, info := range types {
		fmt.Fprintf(&b, "%d. %s\n", i+1, info.Type)
		fmt.Fprintf(&b, "   Template: %s\n", info.Template)
		fmt.Fprintf(&b, "   Flatten: %t\n", info.Flatten)
		fmt.Fprintf(&b, "   Resolver: %s\n", info.Resolver)
		if len(info.Pricing) > 0 {
			fmt.Fprintf(&b, "   Pricing: %s\n", formatPairs(info.Pricing))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleTemplateFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("contract_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tf, err := s.gen.TemplateFields(ctx, raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Template %s for %s\n", tf.Template, tf.Type)
	fmt.Fprintf(&b, "Location: %s\n", tf.Location)
	fmt.Fprintf(&b, "Fields (%d):\n", len(tf.Fields))
	for _, f := range tf.Fields {
		fmt.Fprintf(&b, "  • %s [%s]", f.Name, f.Type)
		if f.Value != "" {
			fmt.Fprintf(&b, " = %q", f.Value)
		}
		if len(f.Pages) > 0 {
			fmt.Fprintf(&b, " pages %v", f.Pages)
		}
		b.WriteString("\n")
	}
	if len(tf.Missing) > 0 {
		fmt.Fprintf(&b, "Missing from template: %s\n", strings.Join(tf.Missing, ", "))
	}
	if len(tf.Unmapped) > 0 {
		fmt.Fprintf(&b, "Not mapped by the catalog: %s\n", strings.Join(tf.Unmapped, ", "))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contractType, err := request.RequireString("contract_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	payload, err := requestFields(args["fields"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payload[contract.KeyContractType] = contractType

	req, err := contract.NewRequest(payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts service.GenerateOptions
	if v, ok := args["flatten"].(bool); ok {
		opts.Flatten = &v
	}

	doc, err := s.gen.Generate(ctx, req, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := doc.Filename
	if v, ok := args["filename"].(string); ok && strings.TrimSpace(v) != "" {
		name = v
	}
	path, err := s.writeDocument(name, doc.Bytes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("contract written",
		zap.String("contract_type", string(doc.ContractType)),
		zap.String("path", path),
		zap.Int("bytes", len(doc.Bytes)))

	text := fmt.Sprintf("Generated %s contract: %s\n", doc.ContractType, path)
	text += fmt.Sprintf("Size: %d bytes\n", len(doc.Bytes))
	text += fmt.Sprintf("Filled widgets: %d\n", doc.Filled)
	text += fmt.Sprintf("Flattened: %t\n", doc.Flattened)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleVerify(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, verr := s.gen.Verify(ctx)

	var b strings.Builder
	for _, v := range results {
		status := "OK"
		if !v.OK() {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", status, v.Type, v.Location)
		if v.Error != "" {
			fmt.Fprintf(&b, "   Error: %s\n", v.Error)
		}
		if len(v.Missing) > 0 {
			fmt.Fprintf(&b, "   Missing: %s\n", strings.Join(v.Missing, ", "))
		}
		if len(v.Unmapped) > 0 {
			fmt.Fprintf(&b, "   Unmapped: %s\n", strings.Join(v.Unmapped, ", "))
		}
	}

	if verr != nil {
		return mcp.NewToolResultError(b.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

// writeDocument stores data under the output directory and returns its path
func (s *Server) writeDocument(name string, data []byte) (string, error) {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	path, err := s.output.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write contract: %w", err)
	}
	return path, nil
}

// requestFields accepts the fields argument either as a JSON object or as a
// string holding one
func requestFields(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = x
		}
		return out, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return map[string]any{}, nil
		}
		dec := json.NewDecoder(strings.NewReader(val))
		dec.UseNumber()
		var out map[string]any
		if err := dec.Decode(&out); err != nil || out == nil {
			return nil, contract.NewInvalidRequest("fields must be a JSON object", err)
		}
		return out, nil
	default:
		return nil, contract.NewInvalidRequest(fmt.Sprintf("fields must be a JSON object, got %T", v), nil)
	}
}

func formatPairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ", ")
}

// Run serves MCP over the process stdio until ctx is done or stdin closes
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("starting MCP server on stdio",
		zap.String("output_dir", s.output.Root()),
		zap.String("version", s.config.Version))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
