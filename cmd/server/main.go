// Package main 是检索服务的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hv-search-go/internal/chunker"
	"hv-search-go/internal/config"
	"hv-search-go/internal/handler"
	"hv-search-go/internal/middleware"
	"hv-search-go/internal/pipeline"
	"hv-search-go/internal/repository"
	"hv-search-go/internal/service"
	"hv-search-go/pkg/database"
	"hv-search-go/pkg/embedding"
	"hv-search-go/pkg/kafka"
	"hv-search-go/pkg/llm"
	"hv-search-go/pkg/log"
	"hv-search-go/pkg/storage"
	"hv-search-go/pkg/token"
	"hv-search-go/pkg/tokenizer"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Redis 与可选的 MinIO
	redisClient, err := database.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		minioClient, err = storage.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Fatalf("MinIO 初始化失败: %v", err)
		}
	}

	// 4. 初始化 Repository 与基础客户端
	conversationRepo := repository.NewConversationRepository(redisClient)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	codec, err := tokenizer.New()
	if err != nil {
		log.Fatalf("分词器初始化失败: %v", err)
	}

	// 5. 初始化 Service (依赖注入)
	accessService := service.NewAccessService(cfg.Auth)
	searchService := service.NewSearchService(cfg, embeddingClient)
	chatService := service.NewChatService(searchService, accessService, llmClient, conversationRepo)

	// 6. 初始化索引构建流水线 (Processor)
	processor := pipeline.NewProcessor(cfg, embeddingClient, chunker.New(codec), minioClient, searchService)

	// 7. 启动后台 Kafka 消费者（配置了 brokers 时）
	var producer *kafka.Producer
	if cfg.Kafka.Brokers != "" {
		producer = kafka.NewProducer(cfg.Kafka)
		go kafka.StartConsumer(cfg.Kafka, redisClient, processor)
	}

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(accessService, jwtManager, redisClient, conversationRepo)
	searchHandler := handler.NewSearchHandler(searchService, accessService)
	statusHandler := handler.NewStatusHandler(searchService, accessService)
	chatHandler := handler.NewChatHandler(chatService, jwtManager)
	adminHandler := handler.NewAdminHandler(producer, processor)

	// 9. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refreshToken", authHandler.RefreshToken)
			auth.POST("/logout", middleware.AuthMiddleware(jwtManager, redisClient), authHandler.Logout)
		}

		// 检索与状态路由：访客可用，访问范围由业务层按身份裁决
		apiV1.GET("/search", middleware.OptionalAuthMiddleware(jwtManager, redisClient), searchHandler.Search)
		apiV1.GET("/knowledge/status", middleware.OptionalAuthMiddleware(jwtManager, redisClient), statusHandler.KnowledgeStatus)

		// Chat 路由 (WebSocket)
		chatGroup := apiV1.Group("/chat")
		{
			chatGroup.GET("/websocket-token", middleware.OptionalAuthMiddleware(jwtManager, redisClient), chatHandler.GetWebsocketToken)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, redisClient), middleware.AdminAuthMiddleware())
		{
			admin.POST("/reindex", adminHandler.Reindex)
		}
	}
	r.GET("/chat/:token", chatHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个循环，会在程序退出时自然结束，不需要手动关闭。
	log.Info("服务已优雅关闭")
}
