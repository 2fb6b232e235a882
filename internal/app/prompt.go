package app

import (
	"fmt"
	"strings"
	"text/template"

	"tenantrag/internal/ai"
	"tenantrag/internal/model"
)

const (
	DefaultNoInfoMessage = "I don't have this information in our documentation."
	DefaultTone          = "professional and friendly"

	emptyAnswerMessage = "The model returned an empty response."
	offTopicMessage    = "Sorry, I can't answer that question."
)

var ragSystemTemplate = template.Must(template.New("rag").Parse(
	`You are the customer assistant of {{.Company}}. You answer visitors' questions about {{.Company}} using only the retrieved documentation below.

Rules:
- Answer only questions about {{.Company}}, its products, services and policies.
- Base every answer strictly on the retrieved context. Cite the documents you used as [Source: <name>].
- If the context does not contain the answer, reply exactly: "{{.NoInfo}}"
- If the question is unrelated to {{.Company}}, reply: "{{.OffTopic}}"
- Never invent facts, prices, dates or contact details.

Tone: {{.Tone}}. Keep answers concise and structured.`))

var plainSystemTemplate = template.Must(template.New("plain").Parse(
	`You are the customer service agent of {{.Company}}. Be professional and courteous, answer clearly and concisely, and say so when you do not know something.

Tone: {{.Tone}}.`))

// PromptBuilder renders the system prompt for a tenant and assembles the
// model input from history and the current question.
type PromptBuilder struct {
	defaultTone string
	noInfo      string
}

func NewPromptBuilder(defaultTone, noInfoMessage string) *PromptBuilder {
	if strings.TrimSpace(defaultTone) == "" {
		defaultTone = DefaultTone
	}
	if strings.TrimSpace(noInfoMessage) == "" {
		noInfoMessage = DefaultNoInfoMessage
	}
	return &PromptBuilder{defaultTone: defaultTone, noInfo: noInfoMessage}
}

func (p *PromptBuilder) System(tenant *model.Tenant, withRetrieval bool) (string, error) {
	tone := strings.TrimSpace(tenant.Tone)
	if tone == "" {
		tone = p.defaultTone
	}
	data := struct {
		Company, Tone, NoInfo, OffTopic string
	}{tenant.Name, tone, p.noInfo, offTopicMessage}

	tmpl := plainSystemTemplate
	if withRetrieval {
		tmpl = ragSystemTemplate
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render system prompt failed: %w", err)
	}
	return sb.String(), nil
}

// Augment wraps the visitor question with the retrieved context. Only the
// model sees this; history keeps the bare question.
func (p *PromptBuilder) Augment(retrieved, question string) string {
	return fmt.Sprintf("Retrieved context:\n%s\n\nQuestion: %s", retrieved, question)
}

func (p *PromptBuilder) Messages(system string, history []model.Message, user string) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(history)+2)
	out = append(out, ai.ChatMessage{Role: "system", Content: system})
	for _, m := range history {
		out = append(out, ai.ChatMessage{Role: m.Role, Content: m.Content})
	}
	out = append(out, ai.ChatMessage{Role: "user", Content: user})
	return out
}
