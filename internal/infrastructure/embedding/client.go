// Package embedding 提供查询向量化客户端
package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"rag-answer-api/internal/config"
	"rag-answer-api/pkg/logger"
)

// NewEinoEmbedder 创建基于 Eino 的 Embedder
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is required")
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return embedder, nil
}

// Client 查询向量化客户端，实现 retrieval.Embedder。
// 服务端返回维度与配置不符时裁剪或补零到配置维度，保证下游索引可用。
type Client struct {
	embedder  embedding.Embedder
	dimension int
}

// NewClient 包装底层 Embedder 并固定输出维度
func NewClient(embedder embedding.Embedder, dimension int) *Client {
	return &Client{embedder: embedder, dimension: dimension}
}

// Embed 向量化单条文本
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding service returned no vector")
	}

	vec := toFloat32(vectors[0])
	if c.dimension > 0 && len(vec) != c.dimension {
		logger.Warn(ctx, "embedding dimension mismatch, adjusting",
			"got", len(vec),
			"want", c.dimension,
		)
		vec = fitDimension(vec, c.dimension)
	}
	return vec, nil
}

// Validate 启动探针：向量化固定文本并校验配置维度是否与服务端一致
func (c *Client) Validate(ctx context.Context) error {
	vectors, err := c.embedder.EmbedStrings(ctx, []string{"dimension probe"})
	if err != nil {
		return fmt.Errorf("embedding validation probe failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("embedding validation probe returned no vector")
	}
	if c.dimension > 0 && len(vectors[0]) != c.dimension {
		return fmt.Errorf("embedding dimension mismatch: service returned %d, configured %d",
			len(vectors[0]), c.dimension)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// fitDimension 裁剪或补零到目标维度
func fitDimension(v []float32, dim int) []float32 {
	if len(v) >= dim {
		return v[:dim]
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
