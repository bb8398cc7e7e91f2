package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hv-search-go/internal/model"
	"hv-search-go/internal/repository"
	"hv-search-go/pkg/llm"
	"hv-search-go/pkg/log"

	"github.com/gorilla/websocket"
)

// ChatService 定义了基于检索增强的聊天操作接口。
// sessionID 标识一条 WebSocket 连接，访客的对话历史按会话隔离。
type ChatService interface {
	StreamResponse(ctx context.Context, query string, identity model.Identity, sessionID string, ws *websocket.Conn, shouldStop func() bool) error
}

type chatService struct {
	searchService    SearchService
	accessService    AccessService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(searchService SearchService, accessService AccessService, llmClient llm.Client, conversationRepo repository.ConversationRepository) ChatService {
	return &chatService{
		searchService:    searchService,
		accessService:    accessService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
	}
}

// StreamResponse 协调 RAG 流程并流式传输 LLM 响应。
// 检索范围与 system 人设在每次调用时基于当次身份重新生成，不使用任何缓存的授权状态。
func (s *chatService) StreamResponse(ctx context.Context, query string, identity model.Identity, sessionID string, ws *websocket.Conn, shouldStop func() bool) error {
	// 1. 在该身份可访问的知识域内做融合检索
	domains := s.accessService.EligibleDomains(identity)
	results, err := s.searchService.FusedSearch(ctx, query, domains, defaultPerDomainK, defaultFusedTopN)
	if err != nil {
		return fmt.Errorf("failed to retrieve context: %w", err)
	}

	// 2. 构建上下文、system 人设与历史
	contextText := buildContextText(results)
	prompt := buildPrompt(contextText, query)
	owner := historyOwner(identity, sessionID)
	history, err := s.conversationRepo.GetHistory(ctx, owner)
	if err != nil {
		log.Errorf("Failed to load conversation history: %v", err)
		history = []model.ChatMessage{}
	}
	messages := composeMessages(s.accessService.Persona(identity), history, prompt)

	// 拦截 websocket writer 以捕获完整答案，并包装为 JSON 分块
	answerBuilder := &strings.Builder{}
	interceptor := &wsWriterInterceptor{conn: ws, writer: answerBuilder, shouldStop: shouldStop}

	// 3. 调用 LLM 客户端流式生成；任一依赖处于 mock 模式时走演示模式：
	// mock 向量检索出的上下文不可信，必须带标注返回而不是喂给真实 LLM
	if s.demoMode() {
		err = streamDemoResponse(identity, results, interceptor)
	} else {
		var llmMsgs []llm.Message
		for _, m := range messages {
			llmMsgs = append(llmMsgs, llm.Message{Role: m.Role, Content: m.Content})
		}
		err = s.llmClient.StreamChatMessages(ctx, llmMsgs, interceptor)
	}
	if err != nil {
		return err
	}

	// 4. 发送完成通知，并把本轮问答追加到历史
	sendCompletion(ws)
	fullAnswer := answerBuilder.String()
	if len(fullAnswer) > 0 {
		// 使用后台上下文，因为即使原始请求被取消，我们也希望保存成功生成的答案
		turns := []model.ChatMessage{
			{Role: "user", Content: query, Timestamp: time.Now()},
			{Role: "assistant", Content: fullAnswer, Timestamp: time.Now()},
		}
		if err := s.conversationRepo.AppendTurns(context.Background(), owner, turns); err != nil {
			// 只记录错误，不返回给客户端，因为流式响应已经成功
			log.Errorf("Failed to save conversation history: %v", err)
		}
	}

	return nil
}

// demoMode 报告是否任一依赖运行在 mock 模式。
// 演示回复必须带访问级别标注，见 streamDemoResponse。
func (s *chatService) demoMode() bool {
	return s.llmClient.Mock() || s.searchService.Degraded()
}

// historyOwner 返回对话历史的归属键。
// 访客历史按连接会话隔离，并发访客之间互不可见。
func historyOwner(identity model.Identity, sessionID string) string {
	if identity.Authenticated {
		return identity.Username
	}
	return "guest:" + sessionID
}

// buildContextText 把检索结果拼为提示词上下文，分块之间用空行分隔。
func buildContextText(results []model.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.TextContent
	}
	return strings.Join(parts, "\n\n")
}

// buildPrompt 构建发送给 LLM 的 user 消息。
// 没有任何检索结果时换用降级提示词，让模型明确说明当前没有可用文档。
func buildPrompt(contextText, question string) string {
	if contextText == "" {
		return fmt.Sprintf("No indexed documents are available to answer from. "+
			"Politely explain that the knowledge base is empty and you cannot answer document questions yet.\n\nQuestion: %s\n\nAnswer:", question)
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, question)
}

func composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []model.ChatMessage {
	msgs := make([]model.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, model.ChatMessage{Role: "system", Content: systemMsg})
	msgs = append(msgs, history...)
	msgs = append(msgs, model.ChatMessage{Role: "user", Content: userInput})
	return msgs
}

// streamDemoResponse 在未配置 LLM 时生成演示回复。
// 回复前缀标明当次会话的访问级别，正文展示检索到的最相关分块。
func streamDemoResponse(identity model.Identity, results []model.SearchResult, w llm.MessageWriter) error {
	label := "[DEMO MODE - QA Access Only]"
	if identity.Authenticated {
		label = "[DEMO MODE - Full Access]"
	}

	var b strings.Builder
	b.WriteString(label)
	b.WriteString(" LLM 服务未配置，以下为检索到的最相关内容:\n\n")
	if len(results) == 0 {
		b.WriteString("（没有可用的索引文档）")
	} else {
		limit := 3
		if len(results) < limit {
			limit = len(results)
		}
		for i := 0; i < limit; i++ {
			r := results[i]
			b.WriteString(fmt.Sprintf("[%s | 相似度 %.3f] %s\n\n", r.Domain.Upper(), r.Similarity, r.TextContent))
		}
	}
	return w.WriteMessage(websocket.TextMessage, []byte(strings.TrimRight(b.String(), "\n")))
}

// wsWriterInterceptor 是对 websocket.Conn 的封装，用于捕获写入的消息。
type wsWriterInterceptor struct {
	conn       *websocket.Conn
	writer     *strings.Builder
	shouldStop func() bool
}

// WriteMessage 满足 llm.MessageWriter 接口。
func (w *wsWriterInterceptor) WriteMessage(messageType int, data []byte) error {
	if w.shouldStop != nil && w.shouldStop() {
		// 停止标志生效：跳过下发
		return nil
	}
	w.writer.Write(data)
	// 将原始分块包装成 {"chunk":"..."}
	payload := map[string]string{"chunk": string(data)}
	b, _ := json.Marshal(payload)
	return w.conn.WriteMessage(messageType, b)
}

// sendCompletion 发送完成通知 JSON
func sendCompletion(ws *websocket.Conn) {
	notif := map[string]interface{}{
		"type":      "completion",
		"status":    "finished",
		"message":   "响应已完成",
		"timestamp": time.Now().UnixMilli(),
		"date":      time.Now().Format("2006-01-02T15:04:05"),
	}
	b, _ := json.Marshal(notif)
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
