package ai

import (
	"context"
	"time"
)

// Provider binds the client to one chat model and one embedding model.
type Provider struct {
	client    *OpenAICompatibleClient
	chat      ChatConfig
	embedding EmbeddingConfig
}

func NewProvider(chat ChatConfig, embedding EmbeddingConfig, timeout time.Duration) *Provider {
	return &Provider{
		client:    NewOpenAICompatibleClient(timeout),
		chat:      chat,
		embedding: embedding,
	}
}

func (p *Provider) StreamChat(ctx context.Context, messages []ChatMessage, onChunk func(string) error) (string, error) {
	return p.client.StreamComplete(ctx, p.chat, messages, onChunk)
}

func (p *Provider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, p.embedding, text)
}

func (p *Provider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.client.EmbedBatch(ctx, p.embedding, texts)
}

func (p *Provider) ChatModel() string {
	return p.chat.Model
}
