package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"hv-search-go/internal/config"
	"hv-search-go/internal/index"
	"hv-search-go/internal/model"
	"hv-search-go/pkg/embedding"
	"hv-search-go/pkg/log"
)

// 融合检索的默认参数：每个域各取 5 条，合并后保留前 10 条。
const (
	defaultPerDomainK = 5
	defaultFusedTopN  = 10
)

// DomainNotAvailableError 表示目标知识域没有可用的索引产物。
// 错误信息中列出当前可用的域，方便调用方直接改用。
type DomainNotAvailableError struct {
	Domain    model.Domain
	Available []model.Domain
}

func (e *DomainNotAvailableError) Error() string {
	names := make([]string, len(e.Available))
	for i, d := range e.Available {
		names[i] = d.String()
	}
	return fmt.Sprintf("知识域 '%s' 的索引不存在，当前可用: [%s]", e.Domain, strings.Join(names, ", "))
}

// SearchService 定义了向量检索的业务接口。
// 检索是只读操作，索引产物由流水线整体替换，服务侧只做加载与查询。
type SearchService interface {
	// Search 在单个知识域内检索与 query 最相似的至多 topK 个分块，按相似度降序。
	Search(ctx context.Context, query string, topK int, domain model.Domain) ([]model.SearchResult, error)
	// FusedSearch 在多个知识域内各取 perDomainK 条结果，合并后按相似度降序保留前 topN 条。
	// 合并只按分数排序，不对域做配额平衡；不可用的域直接跳过。
	FusedSearch(ctx context.Context, query string, domains []model.Domain, perDomainK, topN int) ([]model.SearchResult, error)
	// DomainStatuses 返回全部知识域的索引状态。
	DomainStatuses() []model.DomainStatus
	// Invalidate 丢弃某个域的内存缓存，下次检索时重新从磁盘加载。
	Invalidate(domain model.Domain)
	// Degraded 报告检索是否运行在降级模式（Embedding 客户端为 mock）。
	// 降级模式产出的每个结果都必须向调用方明确标注。
	Degraded() bool
}

type searchService struct {
	cfg      *config.Config
	embedder embedding.Client
	stores   map[model.Domain]*index.Store

	mu    sync.RWMutex
	cache map[model.Domain]*index.Artifacts
}

// NewSearchService 创建一个 SearchService。索引产物按域懒加载并缓存在内存中。
func NewSearchService(cfg *config.Config, embedder embedding.Client) SearchService {
	stores := make(map[model.Domain]*index.Store)
	for _, d := range model.AllDomains() {
		dc := cfg.Domain(d)
		stores[d] = index.NewStore(dc.IndexPath, dc.ChunksPath, dc.ManifestPath())
	}
	return &searchService{
		cfg:      cfg,
		embedder: embedder,
		stores:   stores,
		cache:    make(map[model.Domain]*index.Artifacts),
	}
}

// availableDomains 返回当前磁盘上有完整索引产物的域。
func (s *searchService) availableDomains() []model.Domain {
	var out []model.Domain
	for _, d := range model.AllDomains() {
		if s.stores[d].Available() {
			out = append(out, d)
		}
	}
	return out
}

// availableDomainsExcept 返回 skip 之外的可用域，用于产物损坏时的错误提示。
func (s *searchService) availableDomainsExcept(skip model.Domain) []model.Domain {
	var out []model.Domain
	for _, d := range s.availableDomains() {
		if d != skip {
			out = append(out, d)
		}
	}
	return out
}

// artifacts 返回某个域的检索产物，优先走内存缓存。
func (s *searchService) artifacts(domain model.Domain) (*index.Artifacts, error) {
	s.mu.RLock()
	arts, ok := s.cache[domain]
	s.mu.RUnlock()
	if ok {
		return arts, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if arts, ok := s.cache[domain]; ok {
		return arts, nil
	}
	arts, err := s.stores[domain].Load()
	if err != nil {
		return nil, err
	}
	log.Infof("[SearchService] 已加载 %s 域索引: %d 个向量, 维度 %d",
		domain.Upper(), arts.Index.Len(), arts.Index.Dimensions())
	s.cache[domain] = arts
	return arts, nil
}

func (s *searchService) Search(ctx context.Context, query string, topK int, domain model.Domain) ([]model.SearchResult, error) {
	if !s.stores[domain].Available() {
		return nil, &DomainNotAvailableError{Domain: domain, Available: s.availableDomains()}
	}
	arts, err := s.artifacts(domain)
	if err != nil {
		// 产物损坏与产物缺失对调用方是同一回事：该域当前不可检索
		log.Errorf("[SearchService] 加载 %s 域索引产物失败: %v", domain.Upper(), err)
		return nil, &DomainNotAvailableError{Domain: domain, Available: s.availableDomainsExcept(domain)}
	}

	// 配置漂移防线：Embedding 维度与已持久化的索引维度不一致时必须显式失败
	if got := s.embedder.Dimensions(); got != arts.Index.Dimensions() {
		return nil, fmt.Errorf("Embedding 维度 (%d) 与 %s 域索引维度 (%d) 不一致，请检查 embedding.dimensions 配置或重建索引",
			got, domain.Upper(), arts.Index.Dimensions())
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	hits, err := arts.Index.Search(vector, topK)
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		row := arts.Chunks[hit.Position]
		results = append(results, model.SearchResult{
			TextContent: row.Text,
			Similarity:  index.CosineFromDistSq(hit.DistSq),
			Position:    hit.Position,
			Domain:      domain,
			Source:      row.Source,
		})
	}
	// 距离升序换算后已是相似度降序，重排一次兜底换算或排序实现的回归
	sortBySimilarity(results)
	return results, nil
}

func (s *searchService) FusedSearch(ctx context.Context, query string, domains []model.Domain, perDomainK, topN int) ([]model.SearchResult, error) {
	if perDomainK <= 0 {
		perDomainK = defaultPerDomainK
	}
	if topN <= 0 {
		topN = defaultFusedTopN
	}

	var fused []model.SearchResult
	for _, d := range domains {
		results, err := s.Search(ctx, query, perDomainK, d)
		if err != nil {
			var notAvailable *DomainNotAvailableError
			if errors.As(err, &notAvailable) {
				log.Warnf("[SearchService] 融合检索跳过不可用的域: %s", d)
				continue
			}
			return nil, err
		}
		fused = append(fused, results...)
	}

	sortBySimilarity(fused)
	if len(fused) > topN {
		fused = fused[:topN]
	}
	return fused, nil
}

func (s *searchService) DomainStatuses() []model.DomainStatus {
	descriptions := map[model.Domain]string{
		model.DomainHR: "人力资源政策文档库",
		model.DomainQA: "技术支持问答知识库",
	}
	var statuses []model.DomainStatus
	for _, d := range model.AllDomains() {
		store := s.stores[d]
		files := store.ProcessedFiles()
		statuses = append(statuses, model.DomainStatus{
			Domain:         d,
			Available:      store.Available(),
			FileCount:      len(files),
			ProcessedFiles: files,
			Description:    descriptions[d],
		})
	}
	return statuses
}

func (s *searchService) Invalidate(domain model.Domain) {
	s.mu.Lock()
	delete(s.cache, domain)
	s.mu.Unlock()
	log.Infof("[SearchService] 已失效 %s 域的索引缓存", domain.Upper())
}

func (s *searchService) Degraded() bool {
	return s.embedder.Mock()
}

// sortBySimilarity 按相似度降序稳定排序。
func sortBySimilarity(results []model.SearchResult) {
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Similarity > results[b].Similarity
	})
}
