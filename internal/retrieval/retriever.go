// Package retrieval implements the context retriever (C3): it merges a
// thread's recent history with optional hybrid (text + vector) search,
// de-duplicates, sorts by (order, stepOrder), and drops orphaned tool
// messages before the result reaches a provider call (§4.3, I1, P3, P6).
package retrieval

import (
	"context"
	"sort"

	"github.com/intelligencedev/agentcore/internal/apperr"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
	"github.com/intelligencedev/agentcore/internal/storage"
)

// Embedder produces a single query vector for hybrid search. Implementations
// typically wrap embedding.Generator.EmbedMessages for a one-message batch.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, string, error)
}

// SearchOptions is the merged (call-site > thread-default > agent-default)
// search configuration for one retrieval call (§4.3, §9).
type SearchOptions struct {
	TextSearch         bool
	VectorSearch       bool
	Limit              int
	MessageRange       storage.MessageRange
	SearchOtherThreads bool
}

// ActionScope reports whether the caller holds the action-scope capability
// required to fan a search out across a user's other threads (§4.3, §7).
type ActionScope bool

const (
	ReadOnlyScope ActionScope = false
	ActionCapable ActionScope = true
)

// Input is the argument bag for Fetch (§4.3).
type Input struct {
	UserID                    string
	ThreadID                  string
	Messages                  []message.CoreMessage
	UpToAndIncludingMessageID string
	RecentMessages            *int // nil means default (100); 0 means skip the recent window
	ExcludeToolMessages       *bool
	Search                    *SearchOptions
	Scope                     ActionScope
}

// Retriever composes the store and (optionally) an embedder into the
// context-fetch algorithm.
type Retriever struct {
	Store    storage.Store
	Embedder Embedder

	// Index, if set, serves the vectorSearch leg instead of passing the
	// query vector to Store.SearchMessages (§11 domain stack: Qdrant-backed
	// C3 backend).
	Index VectorIndex
}

func New(store storage.Store, embedder Embedder) *Retriever {
	return &Retriever{Store: store, Embedder: embedder}
}

// IndexMessage upserts one message's embedding into the configured
// VectorIndex. No-op when no index is configured, so callers can invoke
// it unconditionally after every embedded save.
func (r *Retriever) IndexMessage(ctx context.Context, messageID string, vec []float32) error {
	if r.Index == nil || messageID == "" {
		return nil
	}
	return r.Index.Upsert(ctx, messageID, vec)
}

// Fetch implements §4.3 steps 1-5.
func (r *Retriever) Fetch(ctx context.Context, in Input) ([]storage.MessageDoc, error) {
	log := observability.LoggerWithTrace(ctx)

	if in.UserID == "" && in.ThreadID == "" {
		return nil, apperr.InvalidArgumentf("retrieval.Fetch", "one of userId or threadId is required")
	}

	excludeTool := true
	if in.ExcludeToolMessages != nil {
		excludeTool = *in.ExcludeToolMessages
	}

	included := map[string]bool{}
	var combined []storage.MessageDoc

	recentCount := 100
	if in.RecentMessages != nil {
		recentCount = *in.RecentMessages
	}
	if in.ThreadID != "" && (recentCount != 0 || in.UpToAndIncludingMessageID != "") {
		page, err := r.Store.ListMessagesByThreadID(ctx, storage.ListMessagesInput{
			ThreadID:                  in.ThreadID,
			ExcludeToolMessages:       excludeTool,
			Pagination:                storage.PaginationOpts{Limit: recentCount},
			UpToAndIncludingMessageID: in.UpToAndIncludingMessageID,
			Order:                     "asc",
			Statuses:                  []storage.Status{storage.StatusSuccess},
		})
		if err != nil {
			return nil, apperr.Storage("retrieval.Fetch", err)
		}
		for _, d := range page.Messages {
			if !included[d.ID] {
				included[d.ID] = true
				combined = append(combined, d)
			}
		}
	}

	if in.Search != nil && (in.Search.TextSearch || in.Search.VectorSearch) {
		hits, err := r.search(ctx, in, *in.Search, combined)
		if err != nil {
			return nil, err
		}
		var prepend []storage.MessageDoc
		for _, h := range hits {
			if !included[h.ID] {
				included[h.ID] = true
				prepend = append(prepend, h)
			}
		}
		combined = append(prepend, combined...)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Order != combined[j].Order {
			return combined[i].Order < combined[j].Order
		}
		return combined[i].StepOrder < combined[j].StepOrder
	})

	filtered := FilterOrphanedToolMessages(combined)
	log.Debug().Int("candidates", len(combined)).Int("filtered", len(filtered)).Msg("context_fetch")
	return filtered, nil
}

func (r *Retriever) search(ctx context.Context, in Input, opts SearchOptions, recent []storage.MessageDoc) ([]storage.MessageDoc, error) {
	if opts.SearchOtherThreads && in.Scope != ActionCapable {
		return nil, apperr.Unsupportedf("retrieval.Fetch", "searchOtherThreads requires action-scope capability")
	}

	queryText := lastMessageText(in.Messages)
	var texts []string
	if rm, ok := findByID(recent, in.UpToAndIncludingMessageID); ok {
		if t := rm.Message.ExtractText(); t != "" {
			texts = append(texts, t)
		}
	}
	if queryText != "" {
		texts = append(texts, queryText)
	}

	limit := opts.Limit
	if limit == 0 {
		limit = 10
	}
	msgRange := opts.MessageRange
	if msgRange.Before == 0 && msgRange.After == 0 {
		msgRange = storage.MessageRange{Before: 2, After: 1}
	}

	req := storage.SearchMessagesInput{
		UserID:             in.UserID,
		ThreadID:           in.ThreadID,
		Text:               texts,
		Limit:              limit,
		MessageRange:       msgRange,
		TextSearch:         opts.TextSearch,
		VectorSearch:       opts.VectorSearch,
		SearchOtherThreads: opts.SearchOtherThreads,
	}

	var queryVec []float32
	if opts.VectorSearch && r.Embedder != nil && queryText != "" {
		vec, model, err := r.Embedder.EmbedQuery(ctx, queryText)
		if err != nil {
			return nil, apperr.Provider("retrieval.Fetch", err)
		}
		queryVec = vec
		req.Vector = vec
		req.VectorModel = model
	}

	// With an external index configured, the store only serves the text
	// leg; the index serves nearest-neighbor lookups directly.
	if r.Index != nil {
		req.VectorSearch = false
		req.Vector = nil
	}

	hits, err := r.Store.SearchMessages(ctx, req)
	if err != nil {
		return nil, apperr.Storage("retrieval.Fetch", err)
	}

	if opts.VectorSearch && r.Index != nil && len(queryVec) > 0 {
		ids, err := r.Index.Search(ctx, queryVec, limit)
		if err != nil {
			return nil, apperr.Provider("retrieval.Fetch", err)
		}
		seen := make(map[string]bool, len(hits))
		for _, h := range hits {
			seen[h.ID] = true
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			doc, ok, err := r.Store.GetMessage(ctx, id)
			if err != nil {
				return nil, apperr.Storage("retrieval.Fetch", err)
			}
			if ok {
				seen[id] = true
				hits = append(hits, doc)
			}
		}
	}
	return hits, nil
}

func lastMessageText(msgs []message.CoreMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if t := msgs[i].ExtractText(); t != "" {
			return t
		}
	}
	return ""
}

func findByID(docs []storage.MessageDoc, id string) (storage.MessageDoc, bool) {
	if id == "" {
		return storage.MessageDoc{}, false
	}
	for _, d := range docs {
		if d.ID == id {
			return d, true
		}
	}
	return storage.MessageDoc{}, false
}
