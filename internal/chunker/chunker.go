// Package chunker 负责将长文本切分为带重叠的 token 窗口分块。
package chunker

import (
	"hv-search-go/pkg/log"
)

// Codec 抽象了分块所需的分词能力，由 tokenizer.Codec 实现。
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Chunker 按 token 数对文本进行滑动窗口切分。
// 窗口大小与步长以 token 计，相邻分块之间重叠 overlap 个 token。
type Chunker struct {
	codec Codec
}

// New 创建一个使用指定分词器的 Chunker。
func New(codec Codec) *Chunker {
	return &Chunker{codec: codec}
}

// Split 将文本切分为有序的分块序列。
// 步长为 max(1, chunkSize-overlap)：overlap >= chunkSize 属于非法配置，
// 会被钳制到步长 1 并记录告警，避免步长归零导致死循环。
// 空文本返回 nil，而不是单个空分块。
func (c *Chunker) Split(text string, chunkSize, overlap int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}
	if overlap >= chunkSize {
		log.Warnf("[Chunker] overlap(%d) >= chunkSize(%d)，步长钳制为 1", overlap, chunkSize)
	}

	tokens := c.codec.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, c.codec.Decode(tokens[start:end]))
		// 窗口尾部到达文本末尾后结束，最后一个分块允许短于 chunkSize
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
