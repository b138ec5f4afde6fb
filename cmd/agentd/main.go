// Command agentd wires the orchestration core's dependencies together and
// runs a single generateText call against a thread, mirroring the teacher's
// demo-style entrypoints rather than a full HTTP server (route wiring and
// API-key gating are out of scope here).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/intelligencedev/agentcore/internal/agent"
	"github.com/intelligencedev/agentcore/internal/config"
	"github.com/intelligencedev/agentcore/internal/embedding"
	"github.com/intelligencedev/agentcore/internal/llm/providers"
	"github.com/intelligencedev/agentcore/internal/message"
	"github.com/intelligencedev/agentcore/internal/observability"
	"github.com/intelligencedev/agentcore/internal/retrieval"
	"github.com/intelligencedev/agentcore/internal/storage"
	"github.com/intelligencedev/agentcore/internal/usage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	prompt := flag.String("prompt", "Summarize what this agent can do.", "prompt to send on the demo thread")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.Obs.LogPath, cfg.Obs.LogLevel)
	ctx := context.Background()

	if cfg.Obs.OTLP != "" {
		shutdown, err := observability.InitOTel(ctx, cfg.Obs)
		if err != nil {
			log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		} else {
			defer func() { _ = shutdown(ctx) }()
		}
	}

	httpClient := observability.NewHTTPClient(nil)

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}

	providerName, providerCfg := "openai", cfg.OpenAI
	if cfg.Anthropic.APIKey != "" {
		providerName, providerCfg = "anthropic", cfg.Anthropic
	}
	chatProvider, err := providers.Build(providerName, providerCfg, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm provider")
	}

	var embedder *embedding.Generator
	if cfg.Embedding.APIKey != "" {
		embedder = embedding.New(cfg.Embedding, httpClient)
	}

	retriever := retrieval.New(store, embeddingQueryAdapter{embedder})
	if cfg.VectorIndex.Enabled {
		index, err := retrieval.NewQdrantVectorSearch(cfg.VectorIndex)
		if err != nil {
			log.Warn().Err(err).Msg("qdrant vector index disabled")
		} else {
			retriever.Index = index
		}
	}

	publisher, err := usage.NewPublisher(cfg.Usage)
	if err != nil {
		log.Warn().Err(err).Msg("usage publisher disabled")
	}

	a := &agent.Agent{
		Name:         "agentd",
		Provider:     chatProvider,
		Embedder:     embedder,
		Store:        store,
		Retriever:    retriever,
		Chat:         providerCfg.Model,
		Instructions: "You are a helpful orchestration-core demo agent.",
		MaxSteps:     8,
		OnUsage:      publisher.Publish,
	}

	thread, err := agent.NewThread(ctx, a, "demo-user", "", "agentd demo thread")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create thread")
	}

	result, err := thread.GenerateText(ctx, agent.CallArgs{Prompt: prompt})
	if err != nil {
		log.Fatal().Err(err).Msg("generateText failed")
	}

	fmt.Println(result.Text)
}

func buildStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver != "postgres" {
		return storage.NewMemoryStore(), nil
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := storage.NewPostgresStore(pool)
	if pgInit, ok := store.(interface{ Init(context.Context) error }); ok {
		if err := pgInit.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres schema: %w", err)
		}
	}
	return store, nil
}

// embeddingQueryAdapter satisfies retrieval.Embedder from an
// *embedding.Generator, embedding a single-message batch for one query string.
type embeddingQueryAdapter struct{ gen *embedding.Generator }

func (e embeddingQueryAdapter) EmbedQuery(ctx context.Context, text string) ([]float32, string, error) {
	if e.gen == nil {
		return nil, "", nil
	}
	emb, err := e.gen.EmbedMessages(ctx, []message.CoreMessage{{Role: message.RoleUser, Content: text}})
	if err != nil {
		return nil, "", err
	}
	if len(emb.Vectors) == 0 || emb.Vectors[0] == nil {
		return nil, emb.Model, nil
	}
	return *emb.Vectors[0], emb.Model, nil
}
