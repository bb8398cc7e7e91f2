// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hv-search-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// 会话历史只保留最近的消息条数，避免上下文无限增长。
const maxHistoryMessages = 20

// 会话数据的过期时间。会话状态是临时的，不做长期持久化。
const conversationTTL = 7 * 24 * time.Hour

// ConversationRepository 定义了会话级对话历史的操作接口。
// 历史按用户名隔离，登出时必须整体清除，防止降级后的访客会话泄露 HR 内容。
type ConversationRepository interface {
	GetHistory(ctx context.Context, username string) ([]model.ChatMessage, error)
	AppendTurns(ctx context.Context, username string, turns []model.ChatMessage) error
	ClearForUser(ctx context.Context, username string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个基于 Redis 的 ConversationRepository。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func historyKey(username string) string {
	return fmt.Sprintf("conversation:%s", username)
}

// GetHistory 获取用户的对话历史，尚无历史时返回空切片。
func (r *redisConversationRepository) GetHistory(ctx context.Context, username string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, historyKey(username)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendTurns 将新的对话轮次追加到历史末尾，只保留最近 maxHistoryMessages 条。
func (r *redisConversationRepository) AppendTurns(ctx context.Context, username string, turns []model.ChatMessage) error {
	history, err := r.GetHistory(ctx, username)
	if err != nil {
		return err
	}
	history = append(history, turns...)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, historyKey(username), jsonData, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// ClearForUser 清除用户的全部对话历史。
func (r *redisConversationRepository) ClearForUser(ctx context.Context, username string) error {
	if err := r.redisClient.Del(ctx, historyKey(username)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
