package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/reviewlens/internal/analysis"
	"github.com/kalambet/reviewlens/internal/classifier"
)

// NewMCPServer exposes the analysis pipeline as MCP tools for interactive
// clients. It shares the Analyzer, and therefore the cache, with the HTTP API.
func NewMCPServer(deps Deps, version string) *server.MCPServer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := server.NewMCPServer(
		"reviewlens",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("reviewlens summarizes customer reviews per product: dominant topics, sentiment mix and a short synopsis."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_products",
			mcp.WithDescription("List popular products that have enough reviews to analyze."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of products (default: all)")),
		),
		mcpListProducts(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_product",
			mcp.WithDescription("Analyze the reviews of one product and return topics, sentiment breakdown and a summary."),
			mcp.WithString("asin", mcp.Description("Product ASIN"), mcp.Required()),
			mcp.WithBoolean("include_reviews", mcp.Description("Include the annotated reviews in the output (default false)")),
		),
		mcpAnalyzeProduct(deps),
	)

	s.AddTool(
		mcp.NewTool("record_feedback",
			mcp.WithDescription("Record whether a product summary was accurate."),
			mcp.WithString("asin", mcp.Description("Product ASIN"), mcp.Required()),
			mcp.WithString("feedback", mcp.Description("POSITIVE if the summary is accurate, NEGATIVE otherwise"), mcp.Required()),
		),
		mcpRecordFeedback(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"reviewlens://products",
			"Product Menu",
			mcp.WithResourceDescription("Popular products ranked by rating count, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProducts(deps),
	)

	return s
}

func mcpListProducts(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		menu := deps.Analyzer.Menu()
		if limit := req.GetInt("limit", 0); limit > 0 && limit < len(menu) {
			menu = menu[:limit]
		}
		if len(menu) == 0 {
			return mcpText("No products available."), nil
		}

		var b strings.Builder
		for i, m := range menu {
			fmt.Fprintf(&b, "%d. %s  %s\n", i+1, m.ASIN, m.Title)
		}
		return mcpText(b.String()), nil
	}
}

func mcpAnalyzeProduct(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		asin, err := req.RequireString("asin")
		if err != nil || strings.TrimSpace(asin) == "" {
			return mcpError("asin is required"), nil
		}
		asin = strings.TrimSpace(asin)

		res, err := deps.Analyzer.Analyze(ctx, asin)
		switch {
		case errors.Is(err, analysis.ErrNotFound):
			return mcpError(fmt.Sprintf("no reviews found for %s", asin)), nil
		case errors.Is(err, classifier.ErrUnavailable):
			return mcpError(fmt.Sprintf("topic classifier unavailable, try again later: %v", err)), nil
		case err != nil:
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		out := *res
		if !req.GetBool("include_reviews", false) {
			out.Reviews = nil
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal analysis: %w", err)
		}
		return mcpText(res.AISummary + "\n\n" + string(b)), nil
	}
}

func mcpRecordFeedback(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		asin, err := req.RequireString("asin")
		if err != nil {
			return mcpError("asin is required"), nil
		}
		verdict, err := req.RequireString("feedback")
		if err != nil {
			return mcpError("feedback is required"), nil
		}

		entry, err := recordFeedback(ctx, deps, strings.TrimSpace(asin), verdict)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Recorded %s feedback for %s (id %s).", entry.Feedback, entry.ASIN, entry.ID)), nil
	}
}

func mcpResourceProducts(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Analyzer.Menu())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal menu: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
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
