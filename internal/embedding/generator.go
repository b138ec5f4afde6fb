// Package embedding implements the embedding generator (C2): it turns a
// batch of messages into position-aligned vectors, leaving tool and empty
// messages as nil so downstream consumers can tell "not embedded" apart
// from "embedded to the zero vector" (§4.2, I4).
package embedding

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/intelligencedev/agentcore/internal/apperr"
	"github.com/intelligencedev/agentcore/internal/config"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
	"github.com/intelligencedev/agentcore/internal/storage"
)

// acceptedDimensions is the closed set of vector sizes this deployment
// accepts; anything else is a caller misconfiguration (I4).
var acceptedDimensions = map[int]bool{
	1536: true, // text-embedding-3-small
	3072: true, // text-embedding-3-large
}

// batchEmbedder is the seam between the alignment algorithm and the
// backend call, so the algorithm can be tested without a live API.
type batchEmbedder func(ctx context.Context, texts []string) ([][]float32, error)

// Generator embeds message text via the OpenAI embeddings API.
type Generator struct {
	embed batchEmbedder
	model string
}

// New builds a Generator from the given config and optional shared HTTP
// client (observability.NewHTTPClient wraps it with tracing when supplied).
func New(cfg config.EmbeddingConfig, httpClient *http.Client) *Generator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := sdk.NewClient(opts...)
	model := cfg.Model
	return &Generator{
		model: model,
		embed: func(ctx context.Context, texts []string) ([][]float32, error) {
			resp, err := client.Embeddings.New(ctx, sdk.EmbeddingNewParams{
				Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
				Model: sdk.EmbeddingModel(model),
			})
			if err != nil {
				return nil, err
			}
			out := make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				vec := make([]float32, len(d.Embedding))
				for j, f := range d.Embedding {
					vec[j] = float32(f)
				}
				out[i] = vec
			}
			return out, nil
		},
	}
}

// EmbedMessages implements §4.2's alignment algorithm: extract text per
// message (empty for tool messages per CoreMessage.ExtractText), embed only
// the non-empty texts in one batch call, then scatter the vectors back into
// a slice the same length as msgs so callers can zip embeddings to messages
// by index without re-deriving which messages were skipped.
func (g *Generator) EmbedMessages(ctx context.Context, msgs []message.CoreMessage) (storage.Embedding, error) {
	log := observability.LoggerWithTrace(ctx)

	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.ExtractText()
	}

	emb, err := alignEmbeddings(ctx, texts, g.model, g.embed)
	if err != nil {
		return storage.Embedding{}, err
	}
	log.Debug().Int("messages", len(msgs)).Int("dimension", emb.Dimension).Msg("embed_messages")
	return emb, nil
}

// alignEmbeddings embeds only the non-empty texts and scatters the results
// back into a slice positioned like texts, leaving nil where texts[i] == "".
func alignEmbeddings(ctx context.Context, texts []string, model string, embed batchEmbedder) (storage.Embedding, error) {
	var nonEmptyIdx []int
	var nonEmptyTexts []string
	for i, t := range texts {
		if t != "" {
			nonEmptyIdx = append(nonEmptyIdx, i)
			nonEmptyTexts = append(nonEmptyTexts, t)
		}
	}

	vectors := make([]*[]float32, len(texts))
	if len(nonEmptyTexts) == 0 {
		return storage.Embedding{Vectors: vectors, Dimension: 0, Model: model}, nil
	}

	raw, err := embed(ctx, nonEmptyTexts)
	if err != nil {
		return storage.Embedding{}, apperr.Provider("embedding.EmbedMessages", err)
	}
	if len(raw) != len(nonEmptyTexts) {
		return storage.Embedding{}, apperr.Provider("embedding.EmbedMessages",
			fmt.Errorf("got %d embeddings, want %d", len(raw), len(nonEmptyTexts)))
	}

	dim := 0
	for i, vec := range raw {
		vec := vec
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return storage.Embedding{}, apperr.Provider("embedding.EmbedMessages",
				fmt.Errorf("inconsistent embedding dimension within batch"))
		}
		vectors[nonEmptyIdx[i]] = &vec
	}
	if !acceptedDimensions[dim] {
		return storage.Embedding{}, apperr.InvalidArgumentf("embedding.EmbedMessages", "unsupported embedding dimension %d", dim)
	}

	return storage.Embedding{Vectors: vectors, Dimension: dim, Model: model}, nil
}

// CheckReachability sends a minimal embed call to verify the backend is
// reachable and credentials are valid.
func (g *Generator) CheckReachability(ctx context.Context) error {
	_, err := g.EmbedMessages(ctx, []message.CoreMessage{{Role: message.RoleUser, Content: "ping"}})
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}
