package service

import (
	"context"
	"strings"
	"testing"

	"hv-search-go/internal/model"
	"hv-search-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	messages []string
}

func (w *captureWriter) WriteMessage(_ int, data []byte) error {
	w.messages = append(w.messages, string(data))
	return nil
}

func TestBuildContextText(t *testing.T) {
	assert.Equal(t, "", buildContextText(nil))

	results := []model.SearchResult{
		{TextContent: "第一段内容"},
		{TextContent: "第二段内容"},
	}
	// 分块之间用空行分隔
	assert.Equal(t, "第一段内容\n\n第二段内容", buildContextText(results))
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("一些上下文", "如何请假？")
	assert.Contains(t, prompt, "Context:\n一些上下文")
	assert.Contains(t, prompt, "Question: 如何请假？")
	assert.True(t, strings.HasSuffix(prompt, "Answer:"))
}

func TestBuildPromptWithoutContext(t *testing.T) {
	prompt := buildPrompt("", "如何请假？")
	assert.Contains(t, prompt, "No indexed documents")
	assert.Contains(t, prompt, "Question: 如何请假？")
	assert.NotContains(t, prompt, "Context:")
}

func TestComposeMessagesOrderAndImmutability(t *testing.T) {
	history := []model.ChatMessage{
		{Role: "user", Content: "之前的问题"},
		{Role: "assistant", Content: "之前的回答"},
	}

	msgs := composeMessages("system 人设", history, "新问题")
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "system 人设", msgs[0].Content)
	assert.Equal(t, "之前的问题", msgs[1].Content)
	assert.Equal(t, "之前的回答", msgs[2].Content)
	assert.Equal(t, "user", msgs[3].Role)
	assert.Equal(t, "新问题", msgs[3].Content)

	// 原历史切片不被修改
	require.Len(t, history, 2)
	assert.Equal(t, "之前的问题", history[0].Content)
}

func TestHistoryOwner(t *testing.T) {
	authed := model.Identity{Authenticated: true, Username: "empleado"}
	assert.Equal(t, "empleado", historyOwner(authed, "sess-1"))

	// 访客历史按连接会话隔离，两个并发访客拿到不同的历史键
	assert.Equal(t, "guest:sess-1", historyOwner(model.Guest(), "sess-1"))
	assert.Equal(t, "guest:sess-2", historyOwner(model.Guest(), "sess-2"))
	assert.NotEqual(t, historyOwner(model.Guest(), "sess-1"), historyOwner(model.Guest(), "sess-2"))
}

type stubSearchService struct {
	degraded bool
}

func (s *stubSearchService) Search(context.Context, string, int, model.Domain) ([]model.SearchResult, error) {
	return nil, nil
}

func (s *stubSearchService) FusedSearch(context.Context, string, []model.Domain, int, int) ([]model.SearchResult, error) {
	return nil, nil
}

func (s *stubSearchService) DomainStatuses() []model.DomainStatus { return nil }
func (s *stubSearchService) Invalidate(model.Domain)              {}
func (s *stubSearchService) Degraded() bool                       { return s.degraded }

type stubLLMClient struct {
	mock bool
}

func (c *stubLLMClient) StreamChatMessages(context.Context, []llm.Message, llm.MessageWriter) error {
	return nil
}

func (c *stubLLMClient) Mock() bool { return c.mock }

func TestDemoModeTriggersWhenAnyDependencyMocked(t *testing.T) {
	cases := []struct {
		name     string
		llmMock  bool
		degraded bool
		want     bool
	}{
		{"真实 LLM + 真实向量", false, false, false},
		{"mock LLM", true, false, true},
		// mock 向量检索出的上下文不可信，即使 LLM 真实也要走演示模式
		{"真实 LLM + mock 向量", false, true, true},
		{"全部 mock", true, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &chatService{
				searchService: &stubSearchService{degraded: tc.degraded},
				llmClient:     &stubLLMClient{mock: tc.llmMock},
			}
			assert.Equal(t, tc.want, s.demoMode())
		})
	}
}

func TestStreamDemoResponseLabels(t *testing.T) {
	results := []model.SearchResult{
		{TextContent: "命中的分块", Similarity: 0.91, Domain: model.DomainQA},
	}

	w := &captureWriter{}
	require.NoError(t, streamDemoResponse(model.Guest(), results, w))
	require.Len(t, w.messages, 1)
	assert.Contains(t, w.messages[0], "[DEMO MODE - QA Access Only]")
	assert.Contains(t, w.messages[0], "命中的分块")

	w = &captureWriter{}
	authed := model.Identity{Authenticated: true, Username: "empleado", Role: model.RoleUser}
	require.NoError(t, streamDemoResponse(authed, results, w))
	assert.Contains(t, w.messages[0], "[DEMO MODE - Full Access]")
}

func TestStreamDemoResponseWithoutResults(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, streamDemoResponse(model.Guest(), nil, w))
	require.Len(t, w.messages, 1)
	assert.Contains(t, w.messages[0], "没有可用的索引文档")
}
