// Package mcpadapter exposes grounded answering as an MCP tool.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
)

const ToolAnswerQuestion = "answer_question"

func NewServer(name, version string, answers ports.AnswerService) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h := &handler{answers: answers}
	s.AddTool(answerQuestionTool(), h.answerQuestion)
	return s
}

func answerQuestionTool() mcp.Tool {
	return mcp.NewTool(
		ToolAnswerQuestion,
		mcp.WithDescription("Answer a question about the indexed papers. The answer cites passages as [cN] markers, "+
			"lists those passages as sources, and reports a confidence score and any unsupported sentences."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of passages to retrieve (default 5)."),
		),
		mcp.WithArray("document_ids",
			mcp.Description("Restrict retrieval to these document ids."),
			mcp.WithStringItems(),
		),
	)
}

type handler struct {
	answers ports.AnswerService
}

func (h *handler) answerQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := h.answers.Answer(ctx, domain.AnswerRequest{
		Query:       question,
		TopK:        req.GetInt("top_k", 0),
		DocumentIDs: req.GetStringSlice("document_ids", nil),
	})
	if err != nil {
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			slog.Error("mcp_answer_failed", "tool", ToolAnswerQuestion, "error", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}

	payload, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode answer: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
