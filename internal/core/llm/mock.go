package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// itemMarker matches the per-item index markers used by batch prompts.
var itemMarker = regexp.MustCompile(`(?m)^\[(\d+)\]`)

// mockProvider implements the Provider interface for testing and for runs
// with no API keys configured. Responses are deterministic and mirror the
// JSON shapes the stages parse.
type mockProvider struct{}

// NewMockProvider creates a new mock reasoning provider.
func NewMockProvider() Provider {
	return &mockProvider{}
}

// Name returns the provider identifier.
func (p *mockProvider) Name() ProviderName {
	return ProviderMock
}

// IsAvailable returns true as mock is always available.
func (p *mockProvider) IsAvailable() bool {
	return true
}

// Priority returns the provider priority.
func (p *mockProvider) Priority() int {
	return PriorityMock
}

// Complete implements Provider interface.
func (p *mockProvider) Complete(_ context.Context, req Request) (Response, error) {
	var text string

	switch req.Task {
	case TaskRank:
		text = p.rankResponse(req.Prompt)
	case TaskAnalyze:
		text = `{
			"summary": "Mock summary of the signal.",
			"insights": ["Mock insight"],
			"code_artifacts": [],
			"applicability": "Mock applicability note.",
			"architectural_implications": "None identified.",
			"topics": ["mock-topic"],
			"competitive_notes": ""
		}`
	case TaskSynthesis:
		text = `{
			"relevance_score": 5,
			"summary": "Mock synthesis of the period.",
			"trends": [{"statement": "Mock trend", "evidence_ids": [], "confidence": 0.5}],
			"highlights": ["Mock highlight"],
			"actions": ["Mock action"],
			"maturity_changes": [],
			"competitive_shifts": [],
			"risk_assessment": "No notable risk."
		}`
	default:
		text = "Mock response"
	}

	return Response{
		Text:     text,
		Provider: ProviderMock,
		Model:    req.Model,
	}, nil
}

// rankResponse builds one verdict per item marker found in the prompt, so
// the batch correspondence holds regardless of batch size.
func (p *mockProvider) rankResponse(prompt string) string {
	markers := itemMarker.FindAllStringSubmatch(prompt, -1)

	verdicts := make([]string, 0, len(markers))

	for _, m := range markers {
		verdicts = append(verdicts, fmt.Sprintf(
			`{"index": %s, "score": 5, "dimensions": ["tooling"], "impact": "medium", "maturity": "emerging", "justification": "mock verdict"}`,
			m[1],
		))
	}

	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(strings.Join(verdicts, ","))
	sb.WriteString("]")

	raw := sb.String()
	if !json.Valid([]byte(raw)) {
		return "[]"
	}

	return raw
}

// Ensure mockProvider implements Provider interface.
var _ Provider = (*mockProvider)(nil)
