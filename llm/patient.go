// Package llm generates the simulated patient's side of the conversation.
package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voiceqa/patient-bot/transcript"
)

// extraInstructions is appended to every scenario system prompt so replies
// stay speakable over a phone line.
const extraInstructions = `

ADDITIONAL INSTRUCTIONS:
- Keep your response to 1-3 sentences maximum. Sound natural and human.
- Do NOT narrate actions or emotions in brackets like [pauses] or [sighs].
- Do NOT break character or acknowledge you are an AI.
- If the conversation has achieved its goal and it feels natural to end, say a polite goodbye.
- If the agent seems to be wrapping up but you haven't achieved your goal, gently redirect.
- Respond ONLY with what you would say out loud — no stage directions, no internal thoughts.`

// endPhrases drive the end-of-call heuristic. Substring matching means a
// turn that merely mentions a farewell word can false-positive; that is
// known, documented behavior.
var endPhrases = []string{
	"goodbye", "bye", "thank you so much", "thanks so much",
	"have a good day", "have a great day", "talk to you later",
	"that's all i needed", "that's everything", "thanks, bye",
	"okay bye", "alright bye", "great, thank you, bye",
}

// PatientAgent holds the persona prompt for one call. The OpenAI client is
// shared across calls so connection reuse is preserved.
type PatientAgent struct {
	client       *openai.Client
	model        string
	systemPrompt string
}

func NewPatientAgent(client *openai.Client, model, scenarioPrompt string) *PatientAgent {
	if model == "" {
		model = openai.GPT4o
	}
	return &PatientAgent{
		client:       client,
		model:        model,
		systemPrompt: scenarioPrompt + extraInstructions,
	}
}

// Reply generates the patient's next line given the conversation so far
// and the agent's newest utterance. History maps to OpenAI roles with the
// agent as "user" and the patient as "assistant".
func (a *PatientAgent) Reply(ctx context.Context, history []transcript.Turn, utterance string) (string, error) {
	messages := buildMessages(a.systemPrompt, history, utterance)
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		MaxTokens:   150,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(systemPrompt string, history []transcript.Turn, utterance string) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	for _, turn := range history {
		role := openai.ChatMessageRoleAssistant
		if turn.Speaker == transcript.SpeakerAgent {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: utterance,
	})
}

// ShouldEndCall reports whether the patient's reply reads as a goodbye.
func ShouldEndCall(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range endPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
