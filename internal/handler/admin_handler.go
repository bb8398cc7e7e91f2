package handler

import (
	"context"
	"net/http"

	"hv-search-go/internal/middleware"
	"hv-search-go/internal/model"
	"hv-search-go/internal/pipeline"
	"hv-search-go/pkg/kafka"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/tasks"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	producer  *kafka.Producer // 可为 nil，此时重建任务在本进程内执行
	processor *pipeline.Processor
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(producer *kafka.Producer, processor *pipeline.Processor) *AdminHandler {
	return &AdminHandler{
		producer:  producer,
		processor: processor,
	}
}

// ReindexRequest 定义了触发索引重建 API 的请求体结构。
type ReindexRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// Reindex 处理触发指定知识域索引重建的请求。
// 配置了 Kafka 时任务投递到队列异步执行，否则在本进程后台执行。
func (h *AdminHandler) Reindex(c *gin.Context) {
	var req ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Reindex: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：domain 不能为空", "data": nil})
		return
	}

	domain, err := model.ParseDomain(req.Domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}

	identity := middleware.IdentityFromContext(c)
	task := tasks.ReindexTask{Domain: domain, RequestedBy: identity.Username}

	if h.producer != nil {
		if err := h.producer.ProduceReindexTask(c.Request.Context(), task); err != nil {
			log.Error("Reindex: Failed to produce reindex task", err)
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "投递重建任务失败", "data": nil})
			return
		}
	} else {
		// 没有配置 Kafka 时在后台直接执行，避免阻塞请求
		go func() {
			if err := h.processor.Process(context.Background(), task); err != nil {
				log.Errorf("Reindex: In-process rebuild failed: %v", err)
			}
		}()
	}

	log.Infof("Admin user '%s' triggered reindex for domain '%s'", identity.Username, domain)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "重建任务已提交",
		"data":    gin.H{"domain": domain},
	})
}
