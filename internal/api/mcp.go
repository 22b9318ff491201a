package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/studymate-app/studymate/internal/router"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Engine DocumentEngine
	Router Answerer
}

// NewMCPServer creates an MCP server exposing the study assistant's tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"studymate",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("studymate: personal study assistant that answers questions against uploaded documents."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_documents",
			mcp.WithDescription("Answer a question, drawing on the user's uploaded study documents when relevant."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Optional session scope for document visibility")),
			mcp.WithString("mode", mcp.Description("Answering mode: chat, tutor, notes, or quiz (default chat)")),
		),
		mcpAskDocuments(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Ingest plain text into the user's study documents for later retrieval."),
			mcp.WithString("content", mcp.Description("The text content to ingest"), mcp.Required()),
			mcp.WithString("filename", mcp.Description("Name to record the content under"), mcp.Required()),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Optional session scope for document visibility")),
		),
		mcpAddDocument(deps),
	)

	s.AddTool(
		mcp.NewTool("document_stats",
			mcp.WithDescription("Summarize the user's uploaded documents: counts, word totals, and the document registry."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Optional session scope for document visibility")),
		),
		mcpDocumentStats(deps),
	)

	s.AddTool(
		mcp.NewTool("clear_documents",
			mcp.WithDescription("Remove all of the user's uploaded documents and their index."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Optional session scope for document visibility")),
		),
		mcpClearDocuments(deps),
	)

	return s
}

func mcpAskDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		mode, err := router.ParseMode(req.GetString("mode", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		key := docKey(userID, req.GetString("session_id", ""))
		resp, err := deps.Router.Answer(ctx, query, key, mode, router.Conversation{})
		if err != nil {
			return mcpError(fmt.Sprintf("answering failed: %v", err)), nil
		}
		return mcpText(resp.Content), nil
	}
}

func mcpAddDocument(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		filename, err := req.RequireString("filename")
		if err != nil {
			return mcpError("filename is required"), nil
		}
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		key := docKey(userID, req.GetString("session_id", ""))
		result, err := deps.Engine.AddDocument(ctx, content, filename, key)
		if err != nil {
			return mcpError(fmt.Sprintf("adding document failed: %v", err)), nil
		}
		return mcpText(result.Message), nil
	}
}

func mcpDocumentStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		stats, err := deps.Engine.DocumentStats(docKey(userID, req.GetString("session_id", "")))
		if err != nil {
			return mcpError(fmt.Sprintf("reading stats failed: %v", err)), nil
		}
		b, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return mcpError(fmt.Sprintf("encoding stats failed: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClearDocuments(deps MCPDeps) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		if err := deps.Engine.ClearDocuments(docKey(userID, req.GetString("session_id", ""))); err != nil {
			return mcpError(fmt.Sprintf("clearing documents failed: %v", err)), nil
		}
		return mcpText("All documents cleared."), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
