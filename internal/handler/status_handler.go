package handler

import (
	"net/http"

	"hv-search-go/internal/middleware"
	"hv-search-go/internal/model"
	"hv-search-go/internal/service"

	"github.com/gin-gonic/gin"
)

// StatusHandler 负责处理知识库状态查询请求。
type StatusHandler struct {
	searchService service.SearchService
	accessService service.AccessService
}

// NewStatusHandler 创建一个新的 StatusHandler 实例。
func NewStatusHandler(searchService service.SearchService, accessService service.AccessService) *StatusHandler {
	return &StatusHandler{
		searchService: searchService,
		accessService: accessService,
	}
}

// KnowledgeStatus 返回调用方可访问的各知识域的索引状态。
// 访客只能看到 QA 域的状态，文件清单同样受访问范围约束。
func (h *StatusHandler) KnowledgeStatus(c *gin.Context) {
	identity := middleware.IdentityFromContext(c)
	eligible := make(map[model.Domain]bool)
	for _, d := range h.accessService.EligibleDomains(identity) {
		eligible[d] = true
	}

	var visible []model.DomainStatus
	for _, status := range h.searchService.DomainStatuses() {
		if eligible[status.Domain] {
			visible = append(visible, status)
		}
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": visible})
}
