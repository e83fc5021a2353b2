// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Casevault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/casevault/internal/caseservice"
)

// Server wraps the MCP server with Casevault tools.
type Server struct {
	mcp *server.MCPServer
	svc *caseservice.Service
}

// New creates a new MCP server with all Casevault tools registered.
func New(svc *caseservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Casevault",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_subjects",
		mcp.WithDescription("List all case subjects with their ids and names."),
	), s.listSubjects)

	s.mcp.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return a subject's snapshot descriptor: identity, notes, and the "+
			"file inventory with processing statuses. Rebuilt from the database when absent on disk. "+
			"The structure is documented by the casevault://snapshot-format resource."),
		mcp.WithNumber("subject_id", mcp.Required(), mcp.Description("Subject id")),
	), s.getSnapshot)

	s.mcp.AddTool(mcp.NewTool("rebuild_snapshot",
		mcp.WithDescription("Force a subject's snapshot descriptor to be recomputed from the database, "+
			"replacing any corrupted file on disk."),
		mcp.WithNumber("subject_id", mcp.Required(), mcp.Description("Subject id")),
	), s.rebuildSnapshot)

	s.mcp.AddTool(mcp.NewTool("get_artifact_text",
		mcp.WithDescription("Return the extracted/transformed text of a completed artifact."),
		mcp.WithNumber("subject_id", mcp.Required(), mcp.Description("Subject id")),
		mcp.WithNumber("artifact_id", mcp.Required(), mcp.Description("Artifact id")),
	), s.getArtifactText)

	s.mcp.AddTool(mcp.NewTool("process_artifact",
		mcp.WithDescription("Run the transformation pipeline (transcribe/extract/clean) for one artifact. "+
			"Blocks until processing finishes, including the service's internal retries."),
		mcp.WithNumber("subject_id", mcp.Required(), mcp.Description("Subject id")),
		mcp.WithNumber("artifact_id", mcp.Required(), mcp.Description("Artifact id")),
	), s.processArtifact)

	// Resource: snapshot descriptor format.
	s.mcp.AddResource(
		mcp.NewResource("casevault://snapshot-format", "Snapshot Descriptor Format",
			mcp.WithResourceDescription("Structure of the per-subject snapshot.json descriptor."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSnapshotFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listSubjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjects, err := s.svc.ListSubjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(subjects) == 0 {
		return mcp.NewToolResultText("no subjects"), nil
	}
	var lines []string
	for _, subj := range subjects {
		lines = append(lines, fmt.Sprintf("%d\t%s", subj.ID, subj.Name))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("subject_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	descriptor, err := s.svc.Snapshot(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(descriptor, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) rebuildSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("subject_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	descriptor, err := s.svc.RebuildSnapshot(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(descriptor, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getArtifactText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("subject_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fid, err := req.RequireInt("artifact_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	artifact, err := s.svc.GetArtifact(ctx, int64(id), int64(fid))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if artifact.ExtractedText == nil {
		return mcp.NewToolResultError(fmt.Sprintf("artifact %d has no extracted text (status: %s)", fid, artifact.Status)), nil
	}
	return mcp.NewToolResultText(*artifact.ExtractedText), nil
}

func (s *Server) processArtifact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("subject_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fid, err := req.RequireInt("artifact_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	artifact, err := s.svc.Process(ctx, int64(id), int64(fid))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(artifact, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSnapshotFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "casevault://snapshot-format",
			MIMEType: "text/markdown",
			Text:     SnapshotFormatContract,
		},
	}, nil
}
