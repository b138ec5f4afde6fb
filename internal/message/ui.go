package message

// UIDoc is the minimal projection of a stored message a caller needs to
// build UI messages — callers convert their MessageDoc into this shape
// rather than this package depending on the storage package's types.
type UIDoc struct {
	ID        string
	Order     int64
	StepOrder int64
	Status    string
	Message   CoreMessage
	Error     string
}

// UIPartType tags one rendered fragment of a collapsed UI message.
type UIPartType string

const (
	UIPartText           UIPartType = "text"
	UIPartReasoning      UIPartType = "reasoning"
	UIPartSource         UIPartType = "source"
	UIPartFile           UIPartType = "file"
	UIPartStepStart      UIPartType = "step-start"
	UIPartToolInvocation UIPartType = "tool-invocation"
)

// ToolInvocationState tracks whether a tool-invocation UI part has received its result yet.
type ToolInvocationState string

const (
	ToolInvocationCall   ToolInvocationState = "call"
	ToolInvocationResult ToolInvocationState = "result"
)

type UIPart struct {
	Type UIPartType

	Text string // text, reasoning

	SourceURL   string
	SourceTitle string

	FileName     string
	FileMIMEType string
	FileURL      string

	ToolCallID string
	ToolName   string
	Args       any
	Result     any
	State      ToolInvocationState
	Warning    string // set when a tool-result had no matching tool-call
}

// UIMessage is a single assistant turn assembled from a run of consecutive docs.
type UIMessage struct {
	Role  Role
	Parts []UIPart
}

// ToUIMessages collapses a run of consecutive assistant/tool docs into UI
// messages. A tool-call part starts in state "call"; the matching
// tool-result (by toolCallId) flips it to "result". A tool result with no
// preceding call still appears, in state "result", with a Warning set.
func ToUIMessages(docs []UIDoc) []UIMessage {
	var out []UIMessage
	var current *UIMessage
	callIndex := map[string]int{} // toolCallId -> index into current.Parts

	flush := func() {
		if current != nil {
			out = append(out, *current)
			current = nil
			callIndex = map[string]int{}
		}
	}

	for _, d := range docs {
		switch d.Message.Role {
		case RoleAssistant:
			if current == nil || current.Role != RoleAssistant {
				flush()
				current = &UIMessage{Role: RoleAssistant}
			}
			if !d.Message.HasParts() {
				if txt := d.Message.Content; txt != "" {
					current.Parts = append(current.Parts, UIPart{Type: UIPartText, Text: txt})
				}
				continue
			}
			current.Parts = append(current.Parts, UIPart{Type: UIPartStepStart})
			for _, p := range d.Message.Parts {
				switch p.Type {
				case PartText:
					current.Parts = append(current.Parts, UIPart{Type: UIPartText, Text: p.Text})
				case PartReasoning:
					current.Parts = append(current.Parts, UIPart{Type: UIPartReasoning, Text: p.Text})
				case PartSource:
					current.Parts = append(current.Parts, UIPart{Type: UIPartSource, SourceURL: p.SourceURL, SourceTitle: p.SourceTitle})
				case PartFile:
					current.Parts = append(current.Parts, UIPart{Type: UIPartFile, FileName: p.FileName, FileMIMEType: p.FileMIMEType, FileURL: p.FileURL})
				case PartToolCall:
					idx := len(current.Parts)
					current.Parts = append(current.Parts, UIPart{
						Type:       UIPartToolInvocation,
						ToolCallID: p.ToolCallID,
						ToolName:   p.ToolName,
						Args:       rawToAny(p.Args),
						State:      ToolInvocationCall,
					})
					callIndex[p.ToolCallID] = idx
				}
			}
		case RoleTool:
			if current == nil {
				current = &UIMessage{Role: RoleAssistant}
			}
			for _, p := range d.Message.Parts {
				if p.Type != PartToolResult {
					continue
				}
				if idx, ok := callIndex[p.ToolCallID]; ok {
					current.Parts[idx].State = ToolInvocationResult
					current.Parts[idx].Result = rawToAny(p.Result)
					continue
				}
				current.Parts = append(current.Parts, UIPart{
					Type:       UIPartToolInvocation,
					ToolCallID: p.ToolCallID,
					ToolName:   p.ToolName,
					Result:     rawToAny(p.Result),
					State:      ToolInvocationResult,
					Warning:    "tool result without a preceding call",
				})
			}
		default:
			flush()
			out = append(out, UIMessage{Role: d.Message.Role, Parts: []UIPart{{Type: UIPartText, Text: d.Message.ExtractText()}}})
		}
	}
	flush()
	return out
}

func rawToAny(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
