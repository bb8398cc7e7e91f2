// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"hv-search-go/internal/config"
	"hv-search-go/pkg/log"
)

// Client defines the interface for an embedding client.
// 所有实现返回的向量都是 L2 归一化后的单位向量，检索端的相似度换算依赖该约定。
type Client interface {
	// Embed 将单条文本转换为单位向量。
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 将一批文本一次性发送给提供方，返回与输入同序、一一对应的向量。
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions 返回向量维度。
	Dimensions() int
	// Mock 报告该客户端是否运行在降级 mock 模式。
	Mock() bool
}

// NewClient 根据配置创建 Embedding 客户端。
// api_key 或 base_url 缺失时降级为 mock 客户端，降级只发生在这里一次，
// 之后整个进程内的模式不再改变。
func NewClient(cfg config.EmbeddingConfig) Client {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		log.Warnf("[EmbeddingClient] Embedding 配置不完整，使用 mock 模式 (维度: %d)", cfg.Dimensions)
		return NewMockClient(cfg.Dimensions)
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed calls the OpenAI-compatible API to get the vector for a given text.
func (c *openAICompatibleClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 调用 OpenAI 兼容接口批量获取向量，一批文本只发起一次请求。
func (c *openAICompatibleClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, batch: %d", c.cfg.Model, len(texts))
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(embeddingResp.Data) != len(texts) {
		log.Errorf("[EmbeddingClient] Embedding API 返回数量不匹配: 期望 %d, 实际 %d", len(texts), len(embeddingResp.Data))
		return nil, fmt.Errorf("embedding api returned %d vectors for %d inputs", len(embeddingResp.Data), len(texts))
	}

	vectors := make([][]float32, 0, len(embeddingResp.Data))
	for i, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("received empty embedding for input %d", i)
		}
		// 入索引前统一做 L2 归一化
		vectors = append(vectors, Normalize(d.Embedding))
	}

	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取 %d 个向量, 维度: %d", len(vectors), len(vectors[0]))
	return vectors, nil
}

// Dimensions 返回配置的向量维度。
func (c *openAICompatibleClient) Dimensions() int {
	return c.cfg.Dimensions
}

// Mock 恒为 false：该实现访问真实的 Embedding 提供方。
func (c *openAICompatibleClient) Mock() bool {
	return false
}

// Normalize 返回 v 的 L2 归一化副本。零向量原样返回。
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
