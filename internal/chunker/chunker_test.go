package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCodec 把每个空格分隔的词当作一个 token，便于精确控制 token 数。
type wordCodec struct{}

func (wordCodec) Encode(text string) []int {
	if text == "" {
		return nil
	}
	words := strings.Fields(text)
	tokens := make([]int, len(words))
	for i, w := range words {
		n, _ := strconv.Atoi(strings.TrimPrefix(w, "w"))
		tokens[i] = n
	}
	return tokens
}

func (wordCodec) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = fmt.Sprintf("w%d", t)
	}
	return strings.Join(words, " ")
}

// makeText 生成恰好包含 n 个 token 的文本: "w0 w1 ... w{n-1}"。
func makeText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestSplitWindowOffsets(t *testing.T) {
	c := New(wordCodec{})

	// 250 个 token，窗口 100，重叠 10：窗口起点应为 0, 90, 180
	chunks := c.Split(makeText(250), 100, 10)
	require.Len(t, chunks, 3)

	assert.True(t, strings.HasPrefix(chunks[0], "w0 "))
	assert.True(t, strings.HasPrefix(chunks[1], "w90 "))
	assert.True(t, strings.HasPrefix(chunks[2], "w180 "))

	// 前两个分块是满窗口，最后一个分块允许更短
	assert.Len(t, strings.Fields(chunks[0]), 100)
	assert.Len(t, strings.Fields(chunks[1]), 100)
	assert.Len(t, strings.Fields(chunks[2]), 70)
}

func TestSplitOverlapContent(t *testing.T) {
	c := New(wordCodec{})
	chunks := c.Split(makeText(250), 100, 10)
	require.Len(t, chunks, 3)

	// 相邻分块共享 overlap 个 token
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	assert.Equal(t, first[90:], second[:10])
}

func TestSplitShortText(t *testing.T) {
	c := New(wordCodec{})

	// 文本短于窗口时只产出一个分块
	chunks := c.Split(makeText(30), 100, 10)
	require.Len(t, chunks, 1)
	assert.Len(t, strings.Fields(chunks[0]), 30)
}

func TestSplitEmptyText(t *testing.T) {
	c := New(wordCodec{})
	assert.Nil(t, c.Split("", 100, 10))
}

func TestSplitExactWindow(t *testing.T) {
	c := New(wordCodec{})

	// 文本恰好等于窗口大小时不产出第二个空分块
	chunks := c.Split(makeText(100), 100, 10)
	assert.Len(t, chunks, 1)
}

func TestSplitInvalidOverlapClampsStep(t *testing.T) {
	c := New(wordCodec{})

	// overlap >= chunkSize 时步长钳制为 1，不会死循环
	chunks := c.Split(makeText(5), 3, 5)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[1], "w1"))
	assert.Len(t, chunks, 3)
}
