// Package enrich implements the optional language-model assessment
// collaborator. It is strictly best-effort: every failure degrades the
// report upstream instead of failing it, and the engine's issues and
// score never depend on this package.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	coreerrors "vigil/internal/core/errors"
	"vigil/internal/engine/analysis"
	"vigil/internal/shared/util"
)

const maxPromptIssues = 20

// Client summarizes findings through a hosted chat-completion model.
type Client struct {
	api     *openai.Client
	model   string
	limiter *util.Limiter
}

// NewClient reads OPENAI_API_KEY from the environment. A missing key is
// an error; callers treat it as "enrichment disabled".
func NewClient(model string, requestsPerMinute float64) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, coreerrors.New(coreerrors.CodeEnrichmentError, "OPENAI_API_KEY not set")
	}
	if model == "" {
		model = openai.GPT4oMini
		slog.Warn("enrichment model not configured, defaulting", "model", model)
	}
	return &Client{
		api:     openai.NewClient(apiKey),
		model:   model,
		limiter: util.NewLimiter(requestsPerMinute/60.0, 1),
	}, nil
}

// Summarize implements analysis.Summarizer.
func (c *Client) Summarize(ctx context.Context, code, language string, issues []analysis.Issue) (string, error) {
	if !c.limiter.Allow(1) {
		return "", coreerrors.New(coreerrors.CodeEnrichmentError, "enrichment rate limit exceeded")
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a concise code reviewer. Summarize the given findings in at most three sentences, most severe first. Do not invent findings."},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(code, language, issues)},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeEnrichmentError, "summarization call failed")
	}
	if len(resp.Choices) == 0 {
		return "", coreerrors.New(coreerrors.CodeEnrichmentError, "summarization returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildPrompt(code, language string, issues []analysis.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\nFindings (%d total):\n", language, len(issues))
	for i, issue := range issues {
		if i == maxPromptIssues {
			fmt.Fprintf(&b, "... and %d more\n", len(issues)-maxPromptIssues)
			break
		}
		fmt.Fprintf(&b, "- line %d [%s/%s] %s\n", issue.Line, issue.Category, issue.Severity, issue.Message)
	}
	if len(code) > 4000 {
		code = code[:4000]
	}
	fmt.Fprintf(&b, "\nSource:\n%s\n", code)
	return b.String()
}
