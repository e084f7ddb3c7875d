package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"storyteller-server-go/internal/platform/config"
	platformerrors "storyteller-server-go/internal/platform/errors"
	"storyteller-server-go/internal/platform/logging"
)

// Client wraps the hosted completion and embedding collaborators.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	logger         *logging.Logger
}

// NewClient builds a Client from configuration. The API key is required.
func NewClient(cfg config.LLMConfig, logger *logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "llm.new",
			"api_key is required")
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(openai.AdaEmbeddingV2)
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	return &Client{
		api:            openai.NewClientWithConfig(clientCfg),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      cfg.MaxTokens,
		logger:         logger,
	}, nil
}

// Answer wraps query in the instruction template and returns the first
// completion verbatim.
func (c *Client) Answer(ctx context.Context, query string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindCompletion, "llm.answer",
			"chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", platformerrors.New(platformerrors.KindCompletion, "llm.answer",
			"completion returned no choices")
	}

	c.logger.DebugTag("LLM", "answered query of %d chars", len(query))
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindEmbedding, "llm.embed",
			"embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, platformerrors.New(platformerrors.KindEmbedding, "llm.embed",
			"embedding response is empty")
	}
	return resp.Data[0].Embedding, nil
}

// buildPrompt turns a raw user query into the fixed instruction template.
func buildPrompt(query string) string {
	return query + " be concise."
}
