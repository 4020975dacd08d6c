package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/reviewlens/internal/analysis"
	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/reviews"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_ListProducts(t *testing.T) {
	deps := Deps{Analyzer: &mockAnalyzer{menu: []reviews.MenuEntry{
		{ASIN: "B001", Title: "Rose Face Oil"},
		{ASIN: "B002", Title: "Clay Mask"},
	}}, Logger: discardLogger()}

	result, err := mcpListProducts(deps)(context.Background(), makeCallToolRequest("list_products", map[string]interface{}{"limit": 1}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, "B001") || strings.Contains(text, "B002") {
		t.Errorf("text = %q, want only the first product", text)
	}
}

func TestMCPTool_ListProducts_Empty(t *testing.T) {
	deps := Deps{Analyzer: &mockAnalyzer{}, Logger: discardLogger()}
	result, _ := mcpListProducts(deps)(context.Background(), makeCallToolRequest("list_products", nil))
	if result.IsError || !strings.Contains(toolText(t, result), "No products") {
		t.Errorf("result = %+v", result)
	}
}

func TestMCPTool_AnalyzeProduct(t *testing.T) {
	c := &stubClassifier{}
	deps := Deps{Analyzer: newTestAnalyzer(t, c), Logger: discardLogger()}
	handler := mcpAnalyzeProduct(deps)

	result, err := handler(context.Background(), makeCallToolRequest("analyze_product", map[string]interface{}{"asin": "B001"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	text := toolText(t, result)
	if !strings.HasPrefix(text, "Based on an analysis of 6 reviews") {
		t.Errorf("text does not start with the summary: %q", text)
	}

	jsonPart := text[strings.Index(text, "{"):]
	var res analysis.Result
	if err := json.Unmarshal([]byte(jsonPart), &res); err != nil {
		t.Fatalf("decoding analysis JSON: %v", err)
	}
	if res.AnalyzedCount != 6 || len(res.Reviews) != 0 {
		t.Errorf("analyzed=%d reviews=%d, want 6 and none without include_reviews", res.AnalyzedCount, len(res.Reviews))
	}

	// The HTTP and MCP front ends share the cache.
	result, _ = handler(context.Background(), makeCallToolRequest("analyze_product", map[string]interface{}{"asin": "B001", "include_reviews": true}))
	if !strings.Contains(toolText(t, result), `"reviews": [`) {
		t.Error("include_reviews did not include reviews")
	}
	if c.calls.Load() != 1 {
		t.Errorf("classifier calls = %d, want 1", c.calls.Load())
	}
}

func TestMCPTool_AnalyzeProduct_Errors(t *testing.T) {
	cases := []struct {
		name string
		args map[string]interface{}
		err  error
		want string
	}{
		{"missing asin", map[string]interface{}{}, nil, "asin is required"},
		{"not found", map[string]interface{}{"asin": "X"}, fmt.Errorf("%w: X", analysis.ErrNotFound), "no reviews found"},
		{"classifier down", map[string]interface{}{"asin": "X"}, fmt.Errorf("%w: 503", classifier.ErrUnavailable), "unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := Deps{Analyzer: &mockAnalyzer{err: tc.err}, Logger: discardLogger()}
			result, err := mcpAnalyzeProduct(deps)(context.Background(), makeCallToolRequest("analyze_product", tc.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError || !strings.Contains(toolText(t, result), tc.want) {
				t.Errorf("result = %q (IsError=%v), want error containing %q", toolText(t, result), result.IsError, tc.want)
			}
		})
	}
}

func TestMCPTool_RecordFeedback(t *testing.T) {
	store := openTestStore(t)
	deps := Deps{
		Analyzer: &mockAnalyzer{known: map[string]bool{"B001": true}},
		Feedback: store,
		Logger:   discardLogger(),
	}
	handler := mcpRecordFeedback(deps)

	result, err := handler(context.Background(), makeCallToolRequest("record_feedback", map[string]interface{}{
		"asin": "B001", "feedback": "negative",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}

	items, err := store.ListFeedback(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(items) != 1 || items[0].Feedback != "NEGATIVE" || items[0].ParentASIN != "B001" {
		t.Errorf("stored = %+v", items)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("record_feedback", map[string]interface{}{
		"asin": "B001", "feedback": "meh",
	}))
	if !result.IsError {
		t.Error("expected error for invalid verdict")
	}
	result, _ = handler(context.Background(), makeCallToolRequest("record_feedback", map[string]interface{}{
		"asin": "NOPE", "feedback": "POSITIVE",
	}))
	if !result.IsError {
		t.Error("expected error for unknown product")
	}
}

func TestMCPResource_Products(t *testing.T) {
	deps := Deps{Analyzer: &mockAnalyzer{menu: []reviews.MenuEntry{{ASIN: "B001", Title: "Rose Face Oil"}}}}
	contents, err := mcpResourceProducts(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "reviewlens://products"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var menu []reviews.MenuEntry
	if err := json.Unmarshal([]byte(tc.Text), &menu); err != nil || len(menu) != 1 || menu[0].ASIN != "B001" {
		t.Errorf("menu = %+v, err = %v", menu, err)
	}
}

func TestNewMCPServer(t *testing.T) {
	s := NewMCPServer(Deps{Analyzer: &mockAnalyzer{}}, "test")
	if s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
