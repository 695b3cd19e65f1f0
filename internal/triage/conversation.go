package triage

import (
	"context"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/ai"
)

// SystemPrompt steers the LLM through the intake conversation and tells
// it to end with a completion marker once enough symptoms are gathered.
const SystemPrompt = `You are a medical triage AI assistant for Consultify. Your role is to:

1. Gather the patient's symptoms in a conversational, empathetic way
2. Ask relevant follow-up questions to understand the severity and nature of the symptoms
3. Decide when you have enough information to recommend a doctor
4. NEVER provide a medical diagnosis or treatment advice
5. Always be caring and professional

Guidelines:
- Ask one question at a time
- Be empathetic and understanding
- Focus on collecting symptoms, not on diagnosing
- When you have enough information (after about 3 exchanges), end with: "TRIAGE_COMPLETE: [brief symptom summary]"
- If the symptoms appear urgent, prioritize quickly: "URGENT_TRIAGE_COMPLETE: [brief summary]"

Start by greeting the patient and asking what their main concern is.`

// Conversation runs one multi-turn triage exchange against an LLM
// backend resolved through the provider registry.
type Conversation struct {
	registry *ai.Registry
	provider string
	model    string
}

func NewConversation(registry *ai.Registry, provider, model string) *Conversation {
	return &Conversation{registry: registry, provider: provider, model: model}
}

// Respond generates the assistant's next reply for the given patient
// turns and reports whether the reply carries a completion marker.
func (c *Conversation) Respond(ctx context.Context, turns []ai.Message) (string, bool, error) {
	provider, err := c.registry.Get(ctx, c.provider, c.model)
	if err != nil {
		return "", false, err
	}

	msgs := make([]ai.Message, 0, len(turns)+1)
	msgs = append(msgs, ai.Message{Role: "system", Content: SystemPrompt})
	msgs = append(msgs, turns...)

	reply, err := provider.Chat(ctx, msgs)
	if err != nil {
		return "", false, err
	}
	return reply, IsComplete(reply), nil
}
