package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/chat"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/triage"
)

const triageSystemPrompt = "You are an experienced medical triage assistant helping primary health care workers in Nigeria. " +
	"Provide preliminary assessments based on symptoms. You support clinical judgement and never replace it."

const chatSystemPrompt = "You are a helpful assistant for primary health care workers in Nigeria. " +
	"Answer clearly and briefly, point out danger signs that need referral, and reply in %s."

// AnalyzeSymptoms asks the model for a triage assessment.
func (c *Client) AnalyzeSymptoms(ctx context.Context, req triage.Request) (triage.Result, error) {
	reply, err := c.Complete(ctx, PurposeTriage, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: triageSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: triagePrompt(req)},
	})
	if err != nil {
		return triage.Result{}, err
	}
	res := parseTriage(reply)
	res.Timestamp = time.Now().UTC()
	return res, nil
}

// Chat continues a conversation and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, history []chat.Message, message, language string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(chatSystemPrompt, language),
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	reply, err := c.Complete(ctx, PurposeChat, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func triagePrompt(req triage.Request) string {
	var b strings.Builder
	b.WriteString("Analyze these symptoms and provide a preliminary triage assessment:\n\n")
	fmt.Fprintf(&b, "Symptoms: %s\n", req.Symptoms())
	if p := req.Patient(); p != nil {
		if p.Age != nil {
			fmt.Fprintf(&b, "Age: %d years\n", *p.Age)
		}
		if p.Gender != "" {
			fmt.Fprintf(&b, "Gender: %s\n", p.Gender)
		}
		if p.MedicalHistory != "" {
			fmt.Fprintf(&b, "Medical history: %s\n", p.MedicalHistory)
		}
	}
	fmt.Fprintf(&b, `
Please provide your assessment in %s.

Format your response as JSON with these keys:
- likely_diagnosis
- urgency_level (Routine, Urgent or Critical)
- confidence (Low, Medium or High)
- recommended_action
- tests_needed (array)
- treatment_suggestions (array)
- red_flags (array)
- referral_needed (boolean)
- notes
`, req.Language())
	return b.String()
}

// triageReply is the JSON shape the model is asked for.
type triageReply struct {
	triage.Result
	Notes string `json:"notes"`
}

// parseTriage reads the JSON object between the first '{' and the last '}'.
// Replies without usable JSON become a text assessment.
func parseTriage(reply string) triage.Result {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return textTriage("Analysis completed", reply)
	}

	var parsed triageReply
	if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err != nil {
		return textTriage("See detailed notes", reply)
	}
	res := parsed.Result
	if res.Explanation == "" {
		res.Explanation = parsed.Notes
	}
	res.ApplyDefaults()
	return res
}

func textTriage(diagnosis, reply string) triage.Result {
	text := strings.TrimSpace(reply)
	res := triage.Result{
		LikelyDiagnosis:   diagnosis,
		UrgencyLevel:      triage.UrgencyRoutine,
		Confidence:        triage.ConfidenceMedium,
		RecommendedAction: text,
		Explanation:       text,
	}
	res.ApplyDefaults()
	return res
}
