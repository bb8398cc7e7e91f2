// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"hv-search-go/internal/model"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Domains   DomainsConfig   `mapstructure:"domains"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// RedisConfig 存储 Redis 的配置。Redis 用于会话级对话历史与 token 黑名单。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。留空 brokers 可关闭后台重建索引队列。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
// 仅当某个知识域配置了 bucket 时才会从对象存储拉取文档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// AuthConfig 存储调用方凭据白名单。
// 每条记录的格式为 username:password:role，role 省略时默认为 user。
// password 可以写成 bcrypt:<hash> 的形式以存放哈希后的口令。
type AuthConfig struct {
	Users []string `mapstructure:"users"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// api_key 或 base_url 缺失时，Embedding 客户端降级为 mock 模式。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DomainsConfig 存储各知识域的配置。
type DomainsConfig struct {
	HR DomainConfig `mapstructure:"hr"`
	QA DomainConfig `mapstructure:"qa"`
}

// DomainConfig 描述单个知识域的文档来源、索引产物路径与分块参数。
type DomainConfig struct {
	DocumentsFolder string `mapstructure:"documents_folder"`
	IndexPath       string `mapstructure:"index_path"`
	ChunksPath      string `mapstructure:"chunks_path"`
	ChunkSize       int    `mapstructure:"chunk_size"`
	Overlap         int    `mapstructure:"overlap"`
	Bucket          string `mapstructure:"bucket"`
	BucketPrefix    string `mapstructure:"bucket_prefix"`
}

// Load 从指定路径读取 YAML 配置文件并解析为 Config。
// 配置对象在进程启动时构造一次，由 main 显式注入到各组件。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}

// setDefaults 注册各配置项的默认值。
// HR 与 QA 的分块参数默认值不同（HR 200/20，QA 150/12），这是经过调优的取值，
// 统一修改前需要重新评估检索效果。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_hours", 2)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("kafka.topic", "reindex-tasks")

	v.SetDefault("domains.hr.documents_folder", "./documents/hr")
	v.SetDefault("domains.hr.index_path", "./data/indexes/index_hr.hvix")
	v.SetDefault("domains.hr.chunks_path", "./data/indexes/chunks_hr.jsonl")
	v.SetDefault("domains.hr.chunk_size", 200)
	v.SetDefault("domains.hr.overlap", 20)

	v.SetDefault("domains.qa.documents_folder", "./documents/qa")
	v.SetDefault("domains.qa.index_path", "./data/indexes/index_qa.hvix")
	v.SetDefault("domains.qa.chunks_path", "./data/indexes/chunks_qa.jsonl")
	v.SetDefault("domains.qa.chunk_size", 150)
	v.SetDefault("domains.qa.overlap", 12)
}

// Domain 返回指定知识域的配置。
func (c *Config) Domain(d model.Domain) DomainConfig {
	if d == model.DomainQA {
		return c.Domains.QA
	}
	return c.Domains.HR
}

// ManifestPath 返回分块表对应的已处理文件清单路径。
func (dc DomainConfig) ManifestPath() string {
	return trimExt(dc.ChunksPath) + "_filenames.txt"
}

func trimExt(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/' && p[i] != '\\'; i-- {
		if p[i] == '.' {
			return p[:i]
		}
	}
	return p
}
