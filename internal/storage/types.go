// Package storage implements the message persistence contract (C4): thread
// and message docs, and the mutations/queries that save, commit, and roll
// back them with pending/commit/rollback semantics (§4.4, §6).
package storage

import (
	"time"

	"github.com/intelligencedev/agentcore/internal/message"
)

// Status is the lifecycle state of a MessageDoc.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ThreadDoc is a conversation owned optionally by a user. The core never deletes it.
type ThreadDoc struct {
	ID        string
	UserID    string
	Title     string
	Summary   string
	CreatedAt time.Time
}

// MessageDoc is one row in the total order of a thread (§3).
type MessageDoc struct {
	ID        string
	ThreadID  string
	UserID    string
	AgentName string
	Order     int64
	StepOrder int64
	Status    Status
	Message   message.CoreMessage

	Text             string
	Reasoning        string
	ReasoningDetails string
	Sources          []string

	// Tool is true iff Message.IsToolMessage() was true at save time.
	Tool        bool
	EmbeddingID string
	Error       string
}

// Embedding holds the aligned vectors for a batch of saved messages (§3, I4).
type Embedding struct {
	Vectors   []*[]float32
	Dimension int
	Model     string
}

// PaginationOpts bounds a listMessagesByThreadId query.
type PaginationOpts struct {
	Limit int
}

// Page is one page of a listMessagesByThreadId query.
type Page struct {
	Messages        []MessageDoc
	ContinueCursor  string
	IsDone          bool
}

// ListMessagesInput is the argument bag for messages.listMessagesByThreadId (§6).
type ListMessagesInput struct {
	ThreadID                  string
	ExcludeToolMessages       bool
	Pagination                PaginationOpts
	UpToAndIncludingMessageID string
	Order                     string // "asc" | "desc"
	Statuses                  []Status
}

// MessageRange widens a search hit to include nearby context messages (§4.3).
type MessageRange struct {
	Before int
	After  int
}

// SearchMessagesInput is the argument bag for messages.searchMessages (§6).
type SearchMessagesInput struct {
	UserID           string
	ThreadID         string
	BeforeMessageID  string
	Text             []string
	Limit            int
	MessageRange     MessageRange
	Vector           []float32
	VectorModel      string
	TextSearch       bool
	VectorSearch     bool
	SearchOtherThreads bool
}

// NewMessageInput is one message to append via AddMessages.
type NewMessageInput struct {
	Message message.CoreMessage
}

// AddMessagesInput is the argument bag for messages.addMessages (§6).
type AddMessagesInput struct {
	ThreadID         string
	UserID           string
	AgentName        string
	PromptMessageID  string
	Embeddings       *Embedding
	Messages         []message.CoreMessage
	Pending          bool
	FailPendingSteps bool
}

// AddMessagesResult is the output of messages.addMessages.
type AddMessagesResult struct {
	MessageIDs    []string
	LastMessageID string
}

// StepRecord is the atomic record saved by messages.addStep.
type StepRecord struct {
	FinishReason string
	Messages     []message.CoreMessage
	Embeddings   *Embedding
}

// AddStepInput is the argument bag for messages.addStep (§6).
type AddStepInput struct {
	ThreadID        string
	UserID          string
	PromptMessageID string
	Step            StepRecord
	Provider        string
	Model           string
}

// CompleteResult is the outcome passed to completeMessage (§4.4).
type CompleteResult struct {
	Success bool
	Error   string
}
