// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes robot model comparison tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/robometric/robotdiff/internal/adapter"
	"github.com/robometric/robotdiff/internal/compare"
	"github.com/robometric/robotdiff/internal/diff"
	"github.com/robometric/robotdiff/internal/source"
)

// Server wraps the MCP server with comparison tools.
type Server struct {
	mcp      *server.MCPServer
	dir      *source.Dir
	root     string
	defaults diff.Options
}

// New creates a new MCP server with all tools registered. root is the
// model directory tool paths are resolved against.
func New(root string, defaults diff.Options) (*Server, error) {
	dir, err := source.NewDir(root)
	if err != nil {
		return nil, err
	}
	s := &Server{dir: dir, root: root, defaults: defaults}

	s.mcp = server.NewMCPServer(
		"robotdiff",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("compare_robot_models",
		mcp.WithDescription("Compare two robot model files (URDF, SDF, MJCF, or USD) "+
			"and report field-level differences in kinematics, inertials, and geometry. "+
			"Returns a JSON report; see the robotdiff://report-format resource or the "+
			"get_report_contract tool for the payload structure."),
		mcp.WithString("path_a", mcp.Required(), mcp.Description("Path to the first model, relative to the model directory")),
		mcp.WithString("path_b", mcp.Required(), mcp.Description("Path to the second model, relative to the model directory")),
		mcp.WithString("format_a", mcp.Description("Optional format override for the first model (urdf, sdf, mjcf, usd)")),
		mcp.WithString("format_b", mcp.Description("Optional format override for the second model")),
		mcp.WithNumber("tolerance_linear", mcp.Description("Numeric tolerance for lengths, masses, and inertia (default 1e-6)")),
		mcp.WithNumber("tolerance_angular", mcp.Description("Angular tolerance in radians for orientations (default 1e-6)")),
		mcp.WithBoolean("include_visual", mcp.Description("Also compare visual geometry (default false)")),
		mcp.WithString("fields", mcp.Description("Comma-separated field categories to restrict the comparison to (kinematics, inertial, collision, visual)")),
	), s.compareModels)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List robot model files available in the model directory."),
	), s.listModels)

	s.mcp.AddTool(mcp.NewTool("detect_format",
		mcp.WithDescription("Detect the model format of a file by its extension."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Model file path")),
	), s.detectFormat)

	s.mcp.AddTool(mcp.NewTool("get_report_contract",
		mcp.WithDescription("Returns the JSON report format produced by compare_robot_models."),
	), s.getReportContract)

	// Resource: report format contract.
	s.mcp.AddResource(
		mcp.NewResource("robotdiff://report-format", "Comparison Report Format",
			mcp.WithResourceDescription("Structure of the JSON comparison report."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReportFormatResource,
	)

	return s, nil
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) compareModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pathA, err := req.RequireString("path_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pathB, err := req.RequireString("path_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := compare.Options{Diff: s.defaults}
	if f := req.GetString("format_a", ""); f != "" {
		opts.FormatA, err = adapter.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if f := req.GetString("format_b", ""); f != "" {
		opts.FormatB, err = adapter.ParseFormat(f)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if tol := req.GetFloat("tolerance_linear", 0); tol > 0 {
		opts.Diff.ToleranceLinear = tol
	}
	if tol := req.GetFloat("tolerance_angular", 0); tol > 0 {
		opts.Diff.ToleranceAngular = tol
	}
	opts.Diff.IncludeVisual = req.GetBool("include_visual", opts.Diff.IncludeVisual)
	if fields := req.GetString("fields", ""); fields != "" {
		for _, f := range strings.Split(fields, ",") {
			cat, err := diff.ParseCategory(strings.TrimSpace(f))
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			opts.Diff.Fields = append(opts.Diff.Fields, cat)
		}
	}

	docA, err := s.dir.Load(pathA)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load %s: %v", pathA, err)), nil
	}
	docB, err := s.dir.Load(pathB)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load %s: %v", pathB, err)), nil
	}

	res, err := compare.Documents(ctx, docA, docB, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if _, detectErr := adapter.Detect(path); detectErr == nil {
			rel, relErr := filepath.Rel(s.root, path)
			if relErr != nil {
				return relErr
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no model files found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) detectFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := adapter.Detect(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(f)), nil
}

func (s *Server) getReportContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ReportFormatContract), nil
}

func (s *Server) readReportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "robotdiff://report-format",
			MIMEType: "text/markdown",
			Text:     ReportFormatContract,
		},
	}, nil
}
