// Package analyzer reviews saved call transcripts with an LLM and
// produces a consolidated bug report for the agent under test.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voiceqa/patient-bot/transcript"
)

const analysisPrompt = `You are a QA analyst reviewing conversations between a patient and an AI medical office receptionist.

Your job is to identify bugs, quality issues, and behavioral problems in the AGENT's responses.

Categories to check:
1. HALLUCINATION: Agent makes up specific facts (exact hours, addresses, prices, doctor names) that it couldn't know
2. MISUNDERSTANDING: Agent misunderstands what the patient is asking for
3. WRONG_INFORMATION: Agent provides incorrect or contradictory information
4. POOR_UX: Awkward phrasing, unnatural responses, too robotic, repetitive
5. FAILURE_TO_HELP: Agent fails to accomplish a reasonable patient request with no explanation
6. INAPPROPRIATE_RESPONSE: Agent responds in a way that would be harmful or inappropriate in a real medical context
7. TURN_TAKING: Agent interrupts, cuts off, or has timing issues
8. MISSING_CONFIRMATION: Agent completes an action (booking, cancellation) without confirming details

For each bug found, provide:
- category: one of the categories above
- severity: HIGH / MEDIUM / LOW
- description: clear description of the problem
- quote: the exact problematic agent text (or "N/A")
- recommendation: what the agent should have done instead

Return your analysis as JSON in this format:
{
  "scenario_name": "...",
  "overall_quality": "GOOD/FAIR/POOR",
  "bugs": [
    {
      "category": "...",
      "severity": "HIGH/MEDIUM/LOW",
      "description": "...",
      "quote": "...",
      "recommendation": "..."
    }
  ],
  "positive_observations": ["..."],
  "summary": "2-3 sentence overall assessment"
}

If no bugs are found, return an empty bugs array and note positive observations.`

type Bug struct {
	Category       string `json:"category"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Quote          string `json:"quote"`
	Recommendation string `json:"recommendation"`
	Scenario       string `json:"scenario,omitempty"`
}

type Analysis struct {
	ScenarioName         string   `json:"scenario_name"`
	OverallQuality       string   `json:"overall_quality"`
	Bugs                 []Bug    `json:"bugs"`
	PositiveObservations []string `json:"positive_observations"`
	Summary              string   `json:"summary"`
}

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Analyzer struct {
	client completer
	model  string
}

func New(client completer) *Analyzer {
	return &Analyzer{client: client, model: openai.GPT4o}
}

// Analyze reviews one transcript. The model is forced into JSON mode so
// the reply parses directly into an Analysis.
func (a *Analyzer) Analyze(ctx context.Context, rec *transcript.Record) (*Analysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analysisPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Analyze this transcript:\n\n" + formatTranscript(rec)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens: 1000,
	})
	if err != nil {
		return nil, errors.Wrap(err, "analysis completion")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("analysis completion returned no choices")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &analysis); err != nil {
		return nil, errors.Wrap(err, "parse analysis JSON")
	}
	// The transcript is authoritative for the scenario name.
	analysis.ScenarioName = rec.ScenarioName
	return &analysis, nil
}

func formatTranscript(rec *transcript.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n\n", rec.ScenarioName)
	for _, turn := range rec.Transcript {
		label := "PATIENT"
		if turn.Speaker == transcript.SpeakerAgent {
			label = "AGENT"
		}
		fmt.Fprintf(&b, "[%s]: %s\n", label, turn.Text)
	}
	return b.String()
}
