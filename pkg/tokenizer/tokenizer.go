// Package tokenizer 封装了 tiktoken 分词器，提供文本与 token 序列的互转。
// 分块必须使用与 embedding 模型一致的词表，才能正确约束每个分块的 token 数。
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// 默认使用 cl100k_base 词表，与 text-embedding-3 系列模型保持一致。
const defaultEncoding = "cl100k_base"

// Codec 是一个固定词表的分词编解码器。
type Codec struct {
	enc *tiktoken.Tiktoken
}

// New 创建一个使用默认词表的 Codec。
func New() (*Codec, error) {
	return NewWithEncoding(defaultEncoding)
}

// NewWithEncoding 创建一个使用指定词表的 Codec。
func NewWithEncoding(encoding string) (*Codec, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("加载分词词表 '%s' 失败: %w", encoding, err)
	}
	return &Codec{enc: enc}, nil
}

// Encode 将文本编码为 token 序列。
func (c *Codec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

// Decode 将 token 序列还原为文本。
func (c *Codec) Decode(tokens []int) string {
	return c.enc.Decode(tokens)
}

// Count 返回文本的 token 数量。
func (c *Codec) Count(text string) int {
	return len(c.Encode(text))
}
