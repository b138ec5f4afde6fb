// Package providers builds an llm.Provider from configuration, selecting
// between the Anthropic and OpenAI-compatible client adapters.
package providers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/intelligencedev/agentcore/internal/config"
	"github.com/intelligencedev/agentcore/internal/llm"
	"github.com/intelligencedev/agentcore/internal/llm/anthropic"
	openaillm "github.com/intelligencedev/agentcore/internal/llm/openai"
)

// Build constructs an llm.Provider for the named chat provider. "openai" and
// "local" both use the OpenAI-compatible client; "local" is an alias for
// pointing that same client at a self-hosted server via BaseURL, which the
// client detects on its own to enable SSE/tokenize fallbacks.
func Build(name string, providerCfg config.ProviderConfig, httpClient *http.Client) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai", "local":
		return openaillm.New(providerCfg, httpClient), nil
	case "anthropic":
		return anthropic.New(providerCfg, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", name)
	}
}
