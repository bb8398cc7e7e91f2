// Package main 是离线索引构建工具的入口点。
// 它在前台对单个知识域执行一次完整的索引重建，供首次建库和定时任务使用。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"hv-search-go/internal/chunker"
	"hv-search-go/internal/config"
	"hv-search-go/internal/model"
	"hv-search-go/internal/pipeline"
	"hv-search-go/pkg/embedding"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/storage"
	"hv-search-go/pkg/tasks"
	"hv-search-go/pkg/tokenizer"

	"github.com/minio/minio-go/v7"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	domainStr := flag.String("domain", "", "要重建的知识域 (hr 或 qa)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	domain, err := model.ParseDomain(*domainStr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("MinIO 初始化失败: %v", err)
		}
	}

	codec, err := tokenizer.New()
	if err != nil {
		log.Fatalf("分词器初始化失败: %v", err)
	}
	embeddingClient := embedding.NewClient(cfg.Embedding)
	processor := pipeline.NewProcessor(cfg, embeddingClient, chunker.New(codec), minioClient, nil)

	task := tasks.ReindexTask{Domain: domain, RequestedBy: "indexer-cli"}
	if err := processor.Process(context.Background(), task); err != nil {
		log.Fatalf("索引构建失败: %v", err)
	}
	log.Infof("%s 域索引构建完成", domain.Upper())
}
