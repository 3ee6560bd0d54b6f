// Package model is the external model collaborator: a sentence-embedding
// client that ranks candidate labels by similarity to a question.
package model

import (
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shubhsaxena/directory-assistant/internal/config"
)

// ErrDisabled is returned by NewEmbedder when no provider is configured.
var ErrDisabled = errors.New("model: provider disabled")

const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOllamaModel = "nomic-embed-text"
)

// NewEmbedder builds a langchaingo embedder for the configured provider.
func NewEmbedder(cfg config.ModelConfig) (embeddings.Embedder, error) {
	var client embeddings.EmbedderClient

	switch cfg.Provider {
	case config.ProviderOpenAI:
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		opts := []openai.Option{openai.WithEmbeddingModel(model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		client = llm
	case config.ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		client = llm
	case config.ProviderNone, "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("model: unknown provider %q", cfg.Provider)
	}

	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return e, nil
}
