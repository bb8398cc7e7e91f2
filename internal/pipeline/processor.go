// Package pipeline 实现了从文档到检索产物的索引构建流水线。
//
// 流程固定为：收集文档 -> 提取文本 -> 分块 -> 向量化 -> 整体写盘。
// 产物总是整体重建、整体替换，不做增量更新。
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hv-search-go/internal/chunker"
	"hv-search-go/internal/config"
	"hv-search-go/internal/extractor"
	"hv-search-go/internal/index"
	"hv-search-go/internal/model"
	"hv-search-go/pkg/embedding"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/storage"
	"hv-search-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
)

// CacheInvalidator 在索引产物被替换后让检索侧的内存缓存失效。
type CacheInvalidator interface {
	Invalidate(domain model.Domain)
}

// Processor 驱动单个知识域的索引构建。
type Processor struct {
	cfg         *config.Config
	embedder    embedding.Client
	chunker     *chunker.Chunker
	minioClient *minio.Client // 可为 nil，此时只读本地目录
	invalidator CacheInvalidator
}

// NewProcessor 创建一个索引构建 Processor。
// minioClient 与 invalidator 都是可选依赖，传 nil 时相应能力关闭。
func NewProcessor(cfg *config.Config, embedder embedding.Client, ck *chunker.Chunker, minioClient *minio.Client, invalidator CacheInvalidator) *Processor {
	return &Processor{
		cfg:         cfg,
		embedder:    embedder,
		chunker:     ck,
		minioClient: minioClient,
		invalidator: invalidator,
	}
}

// Process 执行一次完整的域索引重建。
// 单个文档的提取或分块失败只跳过该文档；向量化失败或产物数量不一致则中止整次构建，
// 磁盘上的旧产物保持原样可用。
func (p *Processor) Process(ctx context.Context, task tasks.ReindexTask) error {
	dc := p.cfg.Domain(task.Domain)
	log.Infof("[Pipeline] 开始重建 %s 域索引 (chunk_size=%d, overlap=%d)",
		task.Domain.Upper(), dc.ChunkSize, dc.Overlap)

	files, cleanup, err := p.collectDocuments(ctx, dc)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if len(files) == 0 {
		return fmt.Errorf("%s 域没有可索引的文档", task.Domain.Upper())
	}

	var (
		chunks         []index.ChunkRow
		vectors        [][]float32
		processedFiles []string
	)
	for _, file := range files {
		text := extractor.Extract(file)
		if text == "" {
			continue
		}
		pieces := p.chunker.Split(text, dc.ChunkSize, dc.Overlap)
		if len(pieces) == 0 {
			continue
		}

		// 按文档批量向量化，单文档的分块数天然构成一个合适的批次
		vecs, err := p.embedder.EmbedBatch(ctx, pieces)
		if err != nil {
			return fmt.Errorf("文档 '%s' 向量化失败: %w", file, err)
		}

		name := filepath.Base(file)
		for i, piece := range pieces {
			chunks = append(chunks, index.ChunkRow{Text: piece, Source: name})
			vectors = append(vectors, vecs[i])
		}
		processedFiles = append(processedFiles, name)
		log.Infof("[Pipeline] 已处理 %s: %d 个分块", name, len(pieces))
	}

	if len(chunks) == 0 {
		return fmt.Errorf("%s 域的全部文档都未产出有效分块", task.Domain.Upper())
	}

	idx, err := index.NewFlat(p.embedder.Dimensions())
	if err != nil {
		return err
	}
	if err := idx.Add(vectors); err != nil {
		return fmt.Errorf("构建向量索引失败: %w", err)
	}

	store := index.NewStore(dc.IndexPath, dc.ChunksPath, dc.ManifestPath())
	if err := store.Save(idx, chunks, processedFiles); err != nil {
		return err
	}

	if p.invalidator != nil {
		p.invalidator.Invalidate(task.Domain)
	}
	log.Infof("[Pipeline] %s 域索引重建完成: %d 个文档, %d 个分块",
		task.Domain.Upper(), len(processedFiles), len(chunks))
	return nil
}

// collectDocuments 收集待索引的文档路径。
// 配置了 bucket 的域先把对象存储中的文档同步到本地临时目录，否则直接读本地目录。
// 使用临时目录时返回 cleanup，调用方在构建结束后负责删除，避免重复重建泄漏临时文件。
func (p *Processor) collectDocuments(ctx context.Context, dc config.DomainConfig) ([]string, func(), error) {
	if dc.Bucket != "" && p.minioClient != nil {
		destDir, err := os.MkdirTemp("", "hv-search-docs-*")
		if err != nil {
			return nil, nil, fmt.Errorf("创建临时文档目录失败: %w", err)
		}
		cleanup := func() {
			if err := os.RemoveAll(destDir); err != nil {
				log.Warnf("[Pipeline] 删除临时文档目录失败: %s, err=%v", destDir, err)
			}
		}
		files, err := storage.DownloadPrefix(ctx, p.minioClient, dc.Bucket, dc.BucketPrefix, destDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return files, cleanup, nil
	}
	files, err := extractor.CollectFiles(dc.DocumentsFolder)
	return files, nil, err
}
