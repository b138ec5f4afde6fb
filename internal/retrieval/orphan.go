package retrieval

import (
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/storage"
)

// FilterOrphanedToolMessages walks docs in order, tracking tool-call ids
// announced by assistant messages, and drops any tool doc that has a
// tool-result id with no matching earlier tool-call, so a tool doc is kept
// only when all of its ids were announced (I1, P3).
func FilterOrphanedToolMessages(docs []storage.MessageDoc) []storage.MessageDoc {
	announced := map[string]bool{}
	out := make([]storage.MessageDoc, 0, len(docs))
	for _, d := range docs {
		for _, id := range d.Message.ToolCallIDs() {
			announced[id] = true
		}
		if d.Message.Role != message.RoleTool {
			out = append(out, d)
			continue
		}
		resultIDs := d.Message.ToolResultIDs()
		if len(resultIDs) == 0 {
			out = append(out, d)
			continue
		}
		allKnown := true
		for _, id := range resultIDs {
			if !announced[id] {
				allKnown = false
				break
			}
		}
		if allKnown {
			out = append(out, d)
		}
	}
	return out
}
