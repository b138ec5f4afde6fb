package message

import (
	"encoding/json"

	"github.com/intelligencedev/agentcore/internal/apperr"
)

// SerializeMessage converts a CoreMessage to its on-wire JSON form.
func SerializeMessage(m CoreMessage) (json.RawMessage, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, apperr.Provider("message.SerializeMessage", err)
	}
	return b, nil
}

// DeserializeMessage converts a wire-form message back to a CoreMessage.
// It is the exact inverse of SerializeMessage for every shape CoreMessage supports (P4).
func DeserializeMessage(raw json.RawMessage) (CoreMessage, error) {
	var m CoreMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return CoreMessage{}, apperr.Provider("message.DeserializeMessage", err)
	}
	return m, nil
}

// PromptOrMessagesInput is the union of ways a caller may specify the input
// to a generation call.
type PromptOrMessagesInput struct {
	Prompt   *string
	Messages []CoreMessage
	System   *string
}

// PromptOrMessagesToCoreMessages normalizes a call's input into a CoreMessage
// slice. Fails InvalidArgument if both Prompt and Messages are supplied; if
// neither, returns an empty slice (the caller must supply promptMessageId instead).
func PromptOrMessagesToCoreMessages(in PromptOrMessagesInput) ([]CoreMessage, error) {
	if in.Prompt != nil && len(in.Messages) > 0 {
		return nil, apperr.InvalidArgumentf("message.PromptOrMessagesToCoreMessages", "both prompt and messages supplied")
	}
	var out []CoreMessage
	switch {
	case in.Prompt != nil:
		out = []CoreMessage{{Role: RoleUser, Content: *in.Prompt}}
	case len(in.Messages) > 0:
		out = append(out, in.Messages...)
	default:
		return []CoreMessage{}, nil
	}
	return out, nil
}

// Step is the atomic record produced by one iteration of the provider's
// generation loop: the messages it newly emitted (assistant text/tool-calls,
// tool results), its finish reason, and token usage.
type Step struct {
	FinishReason string
	NewMessages  []CoreMessage
	Usage        Usage
}

// Usage carries per-step token accounting forwarded to the usage handler (I5).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StepAttribution names the provider/model that produced a step, attached
// when persisting (§4.1) rather than stored on each CoreMessage.
type StepAttribution struct {
	Provider string
	Model    string
}

// SerializeNewMessagesInStep returns exactly the new messages a step
// produced — it never echoes the prompt that triggered the step.
func SerializeNewMessagesInStep(step Step, attr StepAttribution) []CoreMessage {
	out := make([]CoreMessage, len(step.NewMessages))
	copy(out, step.NewMessages)
	return out
}

// ObjectResult is a non-streaming structured-output generation result.
type ObjectResult struct {
	Object json.RawMessage
	Usage  Usage
}

// SerializeObjectResult synthesizes a Step from a non-streaming
// generateObject call so C4 can persist it uniformly with text-generation
// steps. The finish reason is fixed to "stop" and no logprobs are produced —
// this is a deliberate stand-in for metadata a real provider step would carry.
func SerializeObjectResult(result ObjectResult, attr StepAttribution) Step {
	return Step{
		FinishReason: "stop",
		NewMessages: []CoreMessage{{
			Role:    RoleAssistant,
			Content: string(result.Object),
		}},
		Usage: result.Usage,
	}
}
