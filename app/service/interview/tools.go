package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/tools"
	"github.com/yizucodes/interview-agent/app/service/feedback"
	"github.com/yizucodes/interview-agent/app/service/retrieval"
	"github.com/yizucodes/interview-agent/app/service/store"
)

type agentTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (t *agentTool) Name() string {
	return t.name
}

func (t *agentTool) Description() string {
	return t.description
}

func (t *agentTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

type feedbackInput struct {
	Strengths           string `json:"strengths"`
	AreasForImprovement string `json:"areas_for_improvement"`
	Rating              int    `json:"rating"`
}

func (s *Service) createNativeTools() []tools.Tool {
	return []tools.Tool{
		&agentTool{
			name:        "search_project_docs",
			description: "Search the project documentation for relevant information. Use this to look up details about the candidate's project before asking specific, informed questions. Input is the search query string.",
			call: func(ctx context.Context, input string) (string, error) {
				query := parseQuery(input)

				slog.Info("Searching project docs", "query", query)

				docContext, err := s.retrievalSvc.Search(ctx, query, s.cfg.Interview.RetrievalK)
				if err != nil {
					// Retrieval conditions go back to the LLM as text, the
					// session must not die over a failed lookup.
					if errors.Is(err, retrieval.ErrNoResults) {
						return fmt.Sprintf("No relevant information found for query: %s", query), nil
					}
					if errors.Is(err, store.ErrStoreUnavailable) {
						return "Project documentation is not available in this session.", nil
					}

					slog.Error("Documentation search failed", "query", query, "error", err)
					return fmt.Sprintf("Error searching documentation: %s", err), nil
				}

				return "Project Documentation Context:\n\n" + docContext, nil
			},
		},
		&agentTool{
			name:        "generate_feedback",
			description: "Generate structured end-of-interview feedback for the candidate. Input must be a JSON object with strengths (string), areas_for_improvement (string) and rating (integer 1-10) fields.",
			call: func(ctx context.Context, input string) (string, error) {
				var req feedbackInput
				if err := json.Unmarshal([]byte(input), &req); err != nil {
					return "", fmt.Errorf("invalid feedback JSON: %w", err)
				}

				slog.Info("Generating feedback", "rating", req.Rating)

				return feedback.Format(req.Strengths, req.AreasForImprovement, req.Rating), nil
			},
		},
	}
}

// parseQuery accepts either a bare query string or a {"query": ...} object,
// depending on how the model chose to fill the tool argument.
func parseQuery(input string) string {
	var wrapped struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(input), &wrapped); err == nil && wrapped.Query != "" {
		return wrapped.Query
	}

	return input
}
