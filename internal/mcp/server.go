package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/pdf-unlocker/internal/config"
	"github.com/a3tai/pdf-unlocker/internal/descriptions"
	"github.com/a3tai/pdf-unlocker/internal/pdf"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service, logger *slog.Logger) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
		logger:     logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	passwordsOption := mcp.WithArray("passwords",
		mcp.Description("Candidate passwords in the order to try them. Omit to use the server defaults."),
		mcp.Items(map[string]any{"type": "string"}),
	)

	unlockClassifyTool := mcp.NewTool(
		"pdf_unlock_classify",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_unlock_classify")),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("PDF document encoded as standard base64"),
		),
		passwordsOption,
		mcp.WithBoolean("include_pdf",
			mcp.Description("Return the unlocked PDF as base64 in pdf_base64"),
		),
	)
	s.mcpServer.AddTool(unlockClassifyTool, s.handleUnlockClassify)

	unlockClassifyFileTool := mcp.NewTool(
		"pdf_unlock_classify_file",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_unlock_classify_file")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file inside the configured directory"),
		),
		passwordsOption,
		mcp.WithString("output_path",
			mcp.Description("Optional path inside the configured directory for the unlocked PDF"),
		),
	)
	s.mcpServer.AddTool(unlockClassifyFileTool, s.handleUnlockClassifyFile)

	serverInfoTool := mcp.NewTool(
		"pdf_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_server_info")),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleUnlockClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()

	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(content))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content is not valid base64: %v", err)), nil
	}

	if err := s.pdfService.CheckSize(int64(len(raw))); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	passwords, err := stringSliceArg(args, "passwords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	includePDF, _ := args["include_pdf"].(bool)

	logger := s.logger.With("request_id", requestID, "tool", "pdf_unlock_classify")
	run, err := s.pdfService.Run(ctx, raw, s.pdfService.Candidates(passwords))
	if err != nil {
		logger.Warn("Tool call failed", "error", err)
		return s.errorResult(requestID, err), nil
	}

	return s.jsonResult(pdf.NewClassifyResponse(requestID, run, includePDF))
}

func (s *Server) handleUnlockClassifyFile(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	requestID := uuid.NewString()

	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	passwords, err := stringSliceArg(args, "passwords")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outputPath, _ := args["output_path"].(string)

	result, err := s.pdfService.PDFClassifyFile(ctx, pdf.PDFClassifyFileRequest{
		Path:       path,
		Passwords:  passwords,
		OutputPath: outputPath,
	})
	if err != nil {
		s.logger.Warn("Tool call failed", "request_id", requestID, "tool", "pdf_unlock_classify_file",
			"path", path, "error", err)
		return s.errorResult(requestID, err), nil
	}

	resp := pdf.NewClassifyResponse(requestID, result.Run, false)
	resp.OutputPath = result.OutputPath
	return s.jsonResult(resp)
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info := s.pdfService.PDFServerInfo(s.config.ServerName, s.config.Version)
	return mcp.NewToolResultText(s.formatServerInfo(info)), nil
}

// Formatting methods
func (s *Server) formatServerInfo(info *pdf.ServerInfo) string {
	text := fmt.Sprintf("%s v%s - Server Information\n", info.ServerName, info.Version)
	if info.Directory != "" {
		text += fmt.Sprintf("Directory: %s\n", info.Directory)
	}
	text += fmt.Sprintf("Max File Size: %d MB\n", info.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Max Candidate Passwords: %d\n", info.MaxCandidates)
	text += fmt.Sprintf("Default Passwords: %d\n", info.DefaultPasswords)
	text += fmt.Sprintf("Batch Workers: %d\n", info.Workers)
	text += fmt.Sprintf("Companies: %d names mapping to %s\n", info.CompanyCount, strings.Join(info.CompanyCodes, ", "))
	text += fmt.Sprintf("Currency Aliases: %d\n", info.CurrencyCount)

	text += "\nAvailable Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		text += fmt.Sprintf("  - %s\n", name)
	}

	return text
}

func (s *Server) jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) errorResult(requestID string, err error) *mcp.CallToolResult {
	body, marshalErr := json.Marshal(pdf.NewErrorResponse(requestID, err))
	if marshalErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}

// stringSliceArg reads an optional array of strings from the tool arguments
func stringSliceArg(args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", name, i)
			}
			out[i] = str
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", name)
	}
}

// Run serves MCP over stdio until the input closes
func (s *Server) Run(_ context.Context) error {
	s.logger.Info("Starting MCP server on stdio",
		"server", s.config.ServerName,
		"version", s.config.Version,
		"directory", s.config.PDFDirectory)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
