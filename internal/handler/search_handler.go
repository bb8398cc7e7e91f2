package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hv-search-go/internal/middleware"
	"hv-search-go/internal/model"
	"hv-search-go/internal/service"
	"hv-search-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了检索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
	accessService service.AccessService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, accessService service.AccessService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		accessService: accessService,
	}
}

// Search 是处理向量检索请求的 Gin 处理函数。
// 不带 domain 参数时在调用方可访问的全部知识域内做融合检索；
// 指定 domain 时先做访问裁决，再在该域内检索。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}
	topKStr := c.DefaultQuery("topK", "10")
	topK, err := strconv.Atoi(topKStr)
	if err != nil || topK <= 0 {
		topK = 10
	}

	identity := middleware.IdentityFromContext(c)

	var results []model.SearchResult
	if domainStr := c.Query("domain"); domainStr != "" {
		domain, err := model.ParseDomain(domainStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !h.accessService.CanAccess(identity, domain) {
			log.Warnf("[SearchHandler] 拒绝访问: 身份无权检索 %s 域", domain.Upper())
			c.JSON(http.StatusForbidden, gin.H{"error": "当前身份无权检索该知识域，请先登录"})
			return
		}
		results, err = h.searchService.Search(c.Request.Context(), query, topK, domain)
		if err != nil {
			var notAvailable *service.DomainNotAvailableError
			if errors.As(err, &notAvailable) {
				c.JSON(http.StatusNotFound, gin.H{"error": notAvailable.Error()})
				return
			}
			log.Errorf("[SearchHandler] 检索服务返回错误, error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
			return
		}
	} else {
		domains := h.accessService.EligibleDomains(identity)
		results, err = h.searchService.FusedSearch(c.Request.Context(), query, domains, 0, topK)
		if err != nil {
			log.Errorf("[SearchHandler] 融合检索服务返回错误, error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
			return
		}
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	// 降级模式（mock 向量）产出的结果必须在响应里明确标注
	message := "success"
	if h.searchService.Degraded() {
		message = "[DEMO MODE] Embedding 服务未配置，相似度来自 mock 向量"
	}
	c.JSON(http.StatusOK, gin.H{
		"code":     200,
		"data":     results,
		"message":  message,
		"demoMode": h.searchService.Degraded(),
	})
}
