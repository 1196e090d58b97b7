package semantic

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"drdoc/internal/logging"
)

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an OpenAI embedding engine.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedding provider requires an API key")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Name returns the engine name.
func (e *OpenAIEmbedder) Name() string {
	return "openai/" + string(e.model)
}

// ChatClient synthesizes a narrative answer from retrieved context
// using a chat completion model.
type ChatClient struct {
	client *openai.Client
	model  string
}

// NewChatClient creates a chat completion client. baseURL may point at
// any OpenAI-compatible endpoint; empty uses the default.
func NewChatClient(apiKey, model, baseURL string) (*ChatClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("chat client requires an API key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatClient{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

const answerSystemPrompt = `You are a documentation assistant. Answer the question using only the provided documentation excerpts. If the excerpts do not contain the answer, say so briefly.`

// Synthesize produces an answer to question grounded in the given
// context excerpts.
func (c *ChatClient) Synthesize(ctx context.Context, question string, excerpts []string) (string, error) {
	timer := logging.StartTimer(logging.CategoryAPI, "chat completion")
	defer timer.Stop()

	prompt := "Question: " + question + "\n\nDocumentation excerpts:\n"
	for i, ex := range excerpts {
		prompt += fmt.Sprintf("\n[%d] %s\n", i+1, ex)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
