package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// mockClient 在没有真实 Embedding 凭据时生成伪随机单位向量。
// 它的存在是为了让整条流水线在离线环境下可运行，而不是正确性兜底：
// 每个使用 mock 向量产出的结果都必须向调用方明确标注降级模式。
// 向量由文本内容的 FNV-1a 哈希作为随机种子生成，同一文本总是得到同一向量。
type mockClient struct {
	dimensions int
}

// NewMockClient 创建一个指定维度的 mock Embedding 客户端。
func NewMockClient(dimensions int) Client {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &mockClient{dimensions: dimensions}
}

// Embed 为文本生成确定性的伪随机单位向量。
func (m *mockClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make([]float32, m.dimensions)
	for i := range v {
		v[i] = rng.Float32()
	}
	return Normalize(v), nil
}

// EmbedBatch 逐条生成向量，保持与输入同序。
func (m *mockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// Dimensions 返回向量维度。
func (m *mockClient) Dimensions() int {
	return m.dimensions
}

// Mock 恒为 true。
func (m *mockClient) Mock() bool {
	return true
}
