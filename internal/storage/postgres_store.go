package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intelligencedev/agentcore/internal/apperr"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
)

// NewPostgresStore returns a Postgres-backed Store built on pgxpool, schema
// shaped after the thread/message model of §3.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

type pgStore struct {
	pool *pgxpool.Pool
}

// Init creates the schema if it does not already exist. Safe to call on every boot.
func (s *pgStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS threads (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS thread_order_seq (
    thread_id UUID PRIMARY KEY,
    next_order BIGINT NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY,
    thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL DEFAULT '',
    agent_name TEXT NOT NULL DEFAULT '',
    "order" BIGINT NOT NULL,
    step_order BIGINT NOT NULL,
    status TEXT NOT NULL,
    message JSONB NOT NULL,
    text TEXT NOT NULL DEFAULT '',
    tool BOOLEAN NOT NULL DEFAULT FALSE,
    embedding_id UUID,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS messages_thread_order_steporder_idx ON messages(thread_id, "order", step_order);
CREATE INDEX IF NOT EXISTS messages_thread_status_idx ON messages(thread_id, status);

CREATE TABLE IF NOT EXISTS message_embeddings (
    id UUID PRIMARY KEY,
    vector DOUBLE PRECISION[] NOT NULL,
    dimension INT NOT NULL,
    model TEXT NOT NULL
);

ALTER TABLE messages ADD COLUMN IF NOT EXISTS agent_name TEXT NOT NULL DEFAULT '';
`)
	return err
}

func (s *pgStore) CreateThread(ctx context.Context, userID, title, summary string) (ThreadDoc, error) {
	id := uuid.New()
	row := s.pool.QueryRow(ctx, `
INSERT INTO threads (id, user_id, title, summary)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, title, summary, created_at`, id, userID, title, summary)
	var t ThreadDoc
	var uid string
	if err := row.Scan(&t.ID, &uid, &t.Title, &t.Summary, &t.CreatedAt); err != nil {
		return ThreadDoc{}, apperr.Storage("storage.CreateThread", err)
	}
	t.UserID = uid
	return t, nil
}

func (s *pgStore) GetMessage(ctx context.Context, messageID string) (MessageDoc, bool, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, thread_id, user_id, agent_name, "order", step_order, status, message, text, tool, embedding_id, error
FROM messages WHERE id = $1`, messageID)
	doc, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageDoc{}, false, nil
		}
		return MessageDoc{}, false, apperr.Storage("storage.GetMessage", err)
	}
	return doc, true, nil
}

func scanMessage(row pgx.Row) (MessageDoc, error) {
	var doc MessageDoc
	var raw []byte
	var embeddingID *string
	if err := row.Scan(&doc.ID, &doc.ThreadID, &doc.UserID, &doc.AgentName, &doc.Order, &doc.StepOrder,
		&doc.Status, &raw, &doc.Text, &doc.Tool, &embeddingID, &doc.Error); err != nil {
		return MessageDoc{}, err
	}
	cm, err := message.DeserializeMessage(raw)
	if err != nil {
		return MessageDoc{}, err
	}
	doc.Message = cm
	if embeddingID != nil {
		doc.EmbeddingID = *embeddingID
	}
	return doc, nil
}

func (s *pgStore) ListMessagesByThreadID(ctx context.Context, in ListMessagesInput) (Page, error) {
	log := observability.LoggerWithTrace(ctx)
	query := strings.Builder{}
	query.WriteString(`
SELECT id, thread_id, user_id, agent_name, "order", step_order, status, message, text, tool, embedding_id, error
FROM messages WHERE thread_id = $1`)
	args := []any{in.ThreadID}

	if len(in.Statuses) > 0 {
		args = append(args, statusStrings(in.Statuses))
		query.WriteString(" AND status = ANY($2)")
	}
	if in.ExcludeToolMessages {
		query.WriteString(" AND tool = FALSE")
	}
	if in.UpToAndIncludingMessageID != "" {
		args = append(args, in.UpToAndIncludingMessageID)
		query.WriteString(`
AND ("order", step_order) <= (SELECT "order", step_order FROM messages WHERE id = $` + itoa(len(args)) + `)`)
	}
	query.WriteString(` ORDER BY "order" DESC, step_order DESC`)
	if in.Pagination.Limit > 0 {
		args = append(args, in.Pagination.Limit+1)
		query.WriteString(" LIMIT $" + itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return Page{}, apperr.Storage("storage.ListMessagesByThreadID", err)
	}
	defer rows.Close()

	var docs []MessageDoc
	for rows.Next() {
		d, err := scanMessage(rows)
		if err != nil {
			return Page{}, apperr.Storage("storage.ListMessagesByThreadID", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return Page{}, apperr.Storage("storage.ListMessagesByThreadID", err)
	}

	isDone := true
	if in.Pagination.Limit > 0 && len(docs) > in.Pagination.Limit {
		docs = docs[:in.Pagination.Limit]
		isDone = false
	}
	if in.Order == "asc" {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}
	log.Debug().Str("thread_id", in.ThreadID).Int("count", len(docs)).Msg("list_messages_by_thread")
	return Page{Messages: docs, IsDone: isDone}, nil
}

func (s *pgStore) SearchMessages(ctx context.Context, in SearchMessagesInput) ([]MessageDoc, error) {
	if len(in.Text) == 0 && len(in.Vector) == 0 {
		return nil, apperr.InvalidArgumentf("storage.SearchMessages", "empty query")
	}
	query := strings.Builder{}
	query.WriteString(`
SELECT id, thread_id, user_id, agent_name, "order", step_order, status, message, text, tool, embedding_id, error
FROM messages WHERE status = 'success'`)
	args := []any{}
	if !in.SearchOtherThreads {
		args = append(args, in.ThreadID)
		query.WriteString(" AND thread_id = $" + itoa(len(args)))
	} else if in.UserID != "" {
		args = append(args, in.UserID)
		query.WriteString(" AND user_id = $" + itoa(len(args)))
	}
	if in.TextSearch && len(in.Text) > 0 {
		args = append(args, strings.Join(in.Text, " "))
		query.WriteString(" AND to_tsvector('english', text) @@ plainto_tsquery('english', $" + itoa(len(args)) + ")")
	}
	query.WriteString(` ORDER BY "order" DESC, step_order DESC`)
	if in.Limit > 0 {
		args = append(args, in.Limit)
		query.WriteString(" LIMIT $" + itoa(len(args)))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, apperr.Storage("storage.SearchMessages", err)
	}
	defer rows.Close()
	var docs []MessageDoc
	for rows.Next() {
		d, err := scanMessage(rows)
		if err != nil {
			return nil, apperr.Storage("storage.SearchMessages", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *pgStore) AddMessages(ctx context.Context, in AddMessagesInput) (AddMessagesResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.FailPendingSteps {
		if _, err := tx.Exec(ctx, `UPDATE messages SET status = 'failed', error = 'displaced by a new pending prompt' WHERE thread_id = $1 AND status = 'pending'`, in.ThreadID); err != nil {
			return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
		}
	}

	var order, stepOrder int64
	if in.PromptMessageID != "" {
		row := tx.QueryRow(ctx, `SELECT "order", step_order FROM messages WHERE id = $1`, in.PromptMessageID)
		var parentStepOrder int64
		if err := row.Scan(&order, &parentStepOrder); err != nil {
			return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
		}
		stepOrder = parentStepOrder + 1
	} else {
		row := tx.QueryRow(ctx, `
INSERT INTO thread_order_seq (thread_id, next_order) VALUES ($1, 2)
ON CONFLICT (thread_id) DO UPDATE SET next_order = thread_order_seq.next_order + 1
RETURNING next_order - 1`, in.ThreadID)
		if err := row.Scan(&order); err != nil {
			return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
		}
	}

	status := StatusSuccess
	if in.Pending {
		status = StatusPending
	}

	var result AddMessagesResult
	for i, cm := range in.Messages {
		raw, err := message.SerializeMessage(cm)
		if err != nil {
			return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
		}
		id := uuid.New()
		var embeddingID any
		if in.Embeddings != nil && i < len(in.Embeddings.Vectors) && in.Embeddings.Vectors[i] != nil {
			eid := uuid.New()
			if _, err := tx.Exec(ctx, `INSERT INTO message_embeddings (id, vector, dimension, model) VALUES ($1, $2, $3, $4)`,
				eid, toFloat64(*in.Embeddings.Vectors[i]), in.Embeddings.Dimension, in.Embeddings.Model); err != nil {
				return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
			}
			embeddingID = eid
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO messages (id, thread_id, user_id, agent_name, "order", step_order, status, message, text, tool, embedding_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			id, in.ThreadID, in.UserID, in.AgentName, order, stepOrder+int64(i), status, raw, cm.ExtractText(), cm.IsToolMessage(), embeddingID); err != nil {
			return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
		}
		result.MessageIDs = append(result.MessageIDs, id.String())
		result.LastMessageID = id.String()
	}

	if err := tx.Commit(ctx); err != nil {
		return AddMessagesResult{}, apperr.Storage("storage.AddMessages", err)
	}
	return result, nil
}

func (s *pgStore) AddStep(ctx context.Context, in AddStepInput) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Storage("storage.AddStep", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var order int64
	row := tx.QueryRow(ctx, `SELECT "order" FROM messages WHERE id = $1`, in.PromptMessageID)
	if err := row.Scan(&order); err != nil {
		return apperr.Storage("storage.AddStep", err)
	}
	var maxStepOrder int64
	row = tx.QueryRow(ctx, `SELECT COALESCE(MAX(step_order), 0) FROM messages WHERE thread_id = $1 AND "order" = $2`, in.ThreadID, order)
	if err := row.Scan(&maxStepOrder); err != nil {
		return apperr.Storage("storage.AddStep", err)
	}

	for i, cm := range in.Step.Messages {
		raw, err := message.SerializeMessage(cm)
		if err != nil {
			return apperr.Storage("storage.AddStep", err)
		}
		id := uuid.New()
		var embeddingID any
		if in.Step.Embeddings != nil && i < len(in.Step.Embeddings.Vectors) && in.Step.Embeddings.Vectors[i] != nil {
			eid := uuid.New()
			if _, err := tx.Exec(ctx, `INSERT INTO message_embeddings (id, vector, dimension, model) VALUES ($1, $2, $3, $4)`,
				eid, toFloat64(*in.Step.Embeddings.Vectors[i]), in.Step.Embeddings.Dimension, in.Step.Embeddings.Model); err != nil {
				return apperr.Storage("storage.AddStep", err)
			}
			embeddingID = eid
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO messages (id, thread_id, user_id, "order", step_order, status, message, text, tool, embedding_id)
VALUES ($1, $2, $3, $4, $5, 'success', $6, $7, $8, $9)`,
			id, in.ThreadID, in.UserID, order, maxStepOrder+int64(i)+1, raw, cm.ExtractText(), cm.IsToolMessage(), embeddingID); err != nil {
			return apperr.Storage("storage.AddStep", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Storage("storage.AddStep", err)
	}
	return nil
}

func (s *pgStore) CommitMessage(ctx context.Context, messageID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET status = 'success' WHERE id = $1 AND status = 'pending'`, messageID)
	if err != nil {
		return apperr.Storage("storage.CommitMessage", err)
	}
	return nil
}

func (s *pgStore) RollbackMessage(ctx context.Context, messageID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET status = 'failed', error = $2 WHERE id = $1 AND status = 'pending'`, messageID, errMsg)
	if err != nil {
		return apperr.Storage("storage.RollbackMessage", err)
	}
	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
