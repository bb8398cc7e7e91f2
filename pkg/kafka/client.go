// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hv-search-go/internal/config"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.ReindexTask) error
}

// Producer 负责向重建索引主题投递任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建一个 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// ProduceReindexTask 发送一个索引重建任务到 Kafka。
func (p *Producer) ProduceReindexTask(ctx context.Context, task tasks.ReindexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Value: taskBytes})
}

// StartConsumer 启动一个 Kafka 消费者来处理索引重建任务。
// 同一任务连续失败达到阈值后提交 offset 终止重试，失败计数记录在 Redis。
func StartConsumer(cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "hv-search-indexer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		var task tasks.ReindexTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理索引重建任务: domain=%s, requested_by=%s", task.Domain, task.RequestedBy)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("索引重建任务失败: domain=%s, error: %v", task.Domain, err)
			attemptsKey := fmt.Sprintf("kafka:attempts:reindex:%s", task.Domain)
			attempts, incErr := rdb.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = rdb.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			if attempts >= 3 {
				log.Errorf("索引重建任务多次失败(>=3)，提交 offset 终止重试: domain=%s", task.Domain)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
		} else {
			log.Infof("索引重建任务处理成功: domain=%s", task.Domain)
			_ = rdb.Del(context.Background(), fmt.Sprintf("kafka:attempts:reindex:%s", task.Domain)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
