package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/intelligencedev/agentcore/internal/apperr"
)

// NewMemoryStore returns an in-memory Store suitable for tests and demos.
func NewMemoryStore() Store {
	return &memStore{
		threads:  map[string]ThreadDoc{},
		messages: map[string]*MessageDoc{},
		byThread: map[string][]string{},
	}
}

type memStore struct {
	mu       sync.RWMutex
	threads  map[string]ThreadDoc
	messages map[string]*MessageDoc
	byThread map[string][]string // threadID -> message IDs in insertion order
	orderSeq map[string]int64    // threadID -> next order value
}

func (s *memStore) nextOrder(threadID string) int64 {
	if s.orderSeq == nil {
		s.orderSeq = map[string]int64{}
	}
	s.orderSeq[threadID]++
	return s.orderSeq[threadID]
}

func (s *memStore) CreateThread(ctx context.Context, userID, title, summary string) (ThreadDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := ThreadDoc{ID: uuid.NewString(), UserID: userID, Title: title, Summary: summary, CreatedAt: time.Now().UTC()}
	s.threads[t.ID] = t
	return t, nil
}

func (s *memStore) GetMessage(ctx context.Context, messageID string) (MessageDoc, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[messageID]
	if !ok {
		return MessageDoc{}, false, nil
	}
	return *m, true, nil
}

func (s *memStore) sortedThread(threadID string) []*MessageDoc {
	ids := s.byThread[threadID]
	out := make([]*MessageDoc, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.messages[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].StepOrder < out[j].StepOrder
	})
	return out
}

func (s *memStore) ListMessagesByThreadID(ctx context.Context, in ListMessagesInput) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusOK := func(st Status) bool {
		if len(in.Statuses) == 0 {
			return true
		}
		for _, s := range in.Statuses {
			if s == st {
				return true
			}
		}
		return false
	}

	all := s.sortedThread(in.ThreadID)
	var cut int = len(all)
	if in.UpToAndIncludingMessageID != "" {
		cut = len(all)
		for i, m := range all {
			if m.ID == in.UpToAndIncludingMessageID {
				cut = i + 1
				break
			}
		}
	}

	var filtered []MessageDoc
	for _, m := range all[:cut] {
		if !statusOK(m.Status) {
			continue
		}
		if in.ExcludeToolMessages && m.Tool {
			continue
		}
		filtered = append(filtered, *m)
	}

	// descending by (order, stepOrder), most recent first, then cap to limit.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	limit := in.Pagination.Limit
	isDone := true
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
		isDone = false
	}
	if in.Order == "asc" {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	return Page{Messages: filtered, IsDone: isDone}, nil
}

func (s *memStore) SearchMessages(ctx context.Context, in SearchMessagesInput) ([]MessageDoc, error) {
	if len(in.Text) == 0 && in.Vector == nil {
		return nil, apperr.InvalidArgumentf("storage.SearchMessages", "empty query")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*MessageDoc
	if in.SearchOtherThreads {
		for _, m := range s.messages {
			if in.UserID != "" && m.UserID != in.UserID {
				continue
			}
			candidates = append(candidates, m)
		}
	} else {
		candidates = s.sortedThread(in.ThreadID)
	}

	var hits []MessageDoc
	for _, m := range candidates {
		if m.Status != StatusSuccess {
			continue
		}
		if in.TextSearch && textMatches(m.Text, in.Text) {
			hits = append(hits, *m)
			continue
		}
		if in.VectorSearch && len(in.Vector) > 0 {
			// memory store has no real vector index; fall back to text overlap
			// so tests exercise the hybrid-search wiring deterministically.
			if textMatches(m.Text, in.Text) {
				hits = append(hits, *m)
			}
		}
	}
	limit := in.Limit
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	if in.MessageRange.Before > 0 || in.MessageRange.After > 0 {
		hits = s.expandRange(hits, in.MessageRange)
	}
	return hits, nil
}

func (s *memStore) expandRange(hits []MessageDoc, r MessageRange) []MessageDoc {
	seen := map[string]bool{}
	var out []MessageDoc
	for _, h := range hits {
		window := s.sortedThread(h.ThreadID)
		idx := -1
		for i, m := range window {
			if m.ID == h.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			if !seen[h.ID] {
				seen[h.ID] = true
				out = append(out, h)
			}
			continue
		}
		lo := idx - r.Before
		if lo < 0 {
			lo = 0
		}
		hi := idx + r.After
		if hi > len(window)-1 {
			hi = len(window) - 1
		}
		for i := lo; i <= hi; i++ {
			if !seen[window[i].ID] {
				seen[window[i].ID] = true
				out = append(out, *window[i])
			}
		}
	}
	return out
}

func textMatches(haystack string, needles []string) bool {
	haystack = strings.ToLower(haystack)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func (s *memStore) AddMessages(ctx context.Context, in AddMessagesInput) (AddMessagesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.FailPendingSteps {
		for _, id := range s.byThread[in.ThreadID] {
			m := s.messages[id]
			if m.Status == StatusPending {
				m.Status = StatusFailed
				m.Error = "displaced by a new pending prompt"
			}
		}
	}

	order := s.nextOrder(in.ThreadID)
	var stepOrder int64
	if in.PromptMessageID != "" {
		if parent, ok := s.messages[in.PromptMessageID]; ok {
			order = parent.Order
			stepOrder = parent.StepOrder + 1
		}
	}

	status := StatusSuccess
	if in.Pending {
		status = StatusPending
	}

	var result AddMessagesResult
	for i, cm := range in.Messages {
		id := uuid.NewString()
		doc := &MessageDoc{
			ID:        id,
			ThreadID:  in.ThreadID,
			UserID:    in.UserID,
			AgentName: in.AgentName,
			Order:     order,
			StepOrder: stepOrder + int64(i),
			Status:    status,
			Message:   cm,
			Text:      cm.ExtractText(),
			Tool:      cm.IsToolMessage(),
		}
		if in.Embeddings != nil && i < len(in.Embeddings.Vectors) && in.Embeddings.Vectors[i] != nil {
			doc.EmbeddingID = id
		}
		s.messages[id] = doc
		s.byThread[in.ThreadID] = append(s.byThread[in.ThreadID], id)
		result.MessageIDs = append(result.MessageIDs, id)
		result.LastMessageID = id
	}
	return result, nil
}

func (s *memStore) AddStep(ctx context.Context, in AddStepInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.messages[in.PromptMessageID]
	if !ok {
		return apperr.Storage("storage.AddStep", errNotFound(in.PromptMessageID))
	}
	maxStepOrder := parent.StepOrder
	for _, id := range s.byThread[in.ThreadID] {
		m := s.messages[id]
		if m.Order == parent.Order && m.StepOrder > maxStepOrder {
			maxStepOrder = m.StepOrder
		}
	}
	for i, cm := range in.Step.Messages {
		id := uuid.NewString()
		doc := &MessageDoc{
			ID:        id,
			ThreadID:  in.ThreadID,
			UserID:    in.UserID,
			Order:     parent.Order,
			StepOrder: maxStepOrder + int64(i) + 1,
			Status:    StatusSuccess,
			Message:   cm,
			Text:      cm.ExtractText(),
			Tool:      cm.IsToolMessage(),
		}
		if in.Step.Embeddings != nil && i < len(in.Step.Embeddings.Vectors) && in.Step.Embeddings.Vectors[i] != nil {
			doc.EmbeddingID = id
		}
		s.messages[id] = doc
		s.byThread[in.ThreadID] = append(s.byThread[in.ThreadID], id)
	}
	return nil
}

func (s *memStore) CommitMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return apperr.Storage("storage.CommitMessage", errNotFound(messageID))
	}
	if m.Status != StatusPending {
		return nil
	}
	m.Status = StatusSuccess
	return nil
}

func (s *memStore) RollbackMessage(ctx context.Context, messageID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return apperr.Storage("storage.RollbackMessage", errNotFound(messageID))
	}
	if m.Status != StatusPending {
		return nil
	}
	m.Status = StatusFailed
	m.Error = errMsg
	return nil
}

type notFoundError struct{ id string }

func (e notFoundError) Error() string { return "message not found: " + e.id }

func errNotFound(id string) error { return notFoundError{id: id} }
