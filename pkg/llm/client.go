// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hv-search-go/internal/config"
	"hv-search-go/pkg/log"

	"github.com/gorilla/websocket"
)

// MessageWriter defines an interface for writing WebSocket messages.
// This allows both a standard websocket.Conn and our interceptor to be used.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// StreamChatMessages 以 role-based 消息调用聊天接口，并将流式分块写入 writer。
	StreamChatMessages(ctx context.Context, messages []Message, writer MessageWriter) error
	// Mock 报告该客户端是否运行在降级 mock 模式。
	Mock() bool
}

// Message 表示一条角色消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewClient 根据配置创建 LLM 客户端。
// api_key 或 base_url 缺失时降级为 mock 客户端。
func NewClient(cfg config.LLMConfig) Client {
	if cfg.APIKey == "" || cfg.BaseURL == "" {
		log.Warnf("[LLMClient] LLM 配置不完整，使用 mock 模式")
		return &mockClient{}
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamChatMessages 调用 OpenAI 兼容的 chat completions 接口并流式转发响应。
func (c *openAICompatibleClient) StreamChatMessages(ctx context.Context, messages []Message, writer MessageWriter) error {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   true,
	}
	// 从配置注入生成参数（若非零值）
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.TopP != 0 {
		p := c.cfg.TopP
		reqBody.TopP = &p
	}
	if c.cfg.MaxTokens != 0 {
		m := c.cfg.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(data) == "[DONE]" {
				break
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			if len(chunk.Choices) > 0 {
				content := chunk.Choices[0].Delta.Content
				if err := writer.WriteMessage(websocket.TextMessage, []byte(content)); err != nil {
					return fmt.Errorf("failed to write message to websocket: %w", err)
				}
			}
		}
	}
	return nil
}

// Mock 恒为 false：该实现访问真实的 LLM 提供方。
func (c *openAICompatibleClient) Mock() bool {
	return false
}

// mockClient 在没有真实 LLM 凭据时把最后一条 user 消息原样回显并加上降级标注。
// 调用方（ChatService）通常会在 Mock() 分支里生成更有意义的演示回复，
// 这里的实现只是兜底，保证接口契约在 mock 模式下依然成立。
type mockClient struct{}

func (m *mockClient) StreamChatMessages(_ context.Context, messages []Message, writer MessageWriter) error {
	last := ""
	for _, msg := range messages {
		if msg.Role == "user" {
			last = msg.Content
		}
	}
	reply := fmt.Sprintf("[DEMO MODE] 未配置 LLM 服务，无法生成真实回答。收到的问题: %s", last)
	return writer.WriteMessage(websocket.TextMessage, []byte(reply))
}

func (m *mockClient) Mock() bool {
	return true
}
