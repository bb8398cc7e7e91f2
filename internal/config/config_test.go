package config

import (
	"os"
	"path/filepath"
	"testing"

	"hv-search-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2, cfg.JWT.AccessTokenExpireHours)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, "reindex-tasks", cfg.Kafka.Topic)

	// 各域的分块参数默认值不同
	assert.Equal(t, 200, cfg.Domains.HR.ChunkSize)
	assert.Equal(t, 20, cfg.Domains.HR.Overlap)
	assert.Equal(t, 150, cfg.Domains.QA.ChunkSize)
	assert.Equal(t, 12, cfg.Domains.QA.Overlap)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
domains:
  hr:
    chunk_size: 300
    overlap: 30
auth:
  users:
    - "admin:admin123:admin"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Domains.HR.ChunkSize)
	assert.Equal(t, 30, cfg.Domains.HR.Overlap)
	// 未覆盖的域保持默认
	assert.Equal(t, 150, cfg.Domains.QA.ChunkSize)
	assert.Equal(t, []string{"admin:admin123:admin"}, cfg.Auth.Users)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDomainAccessor(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"8080\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Domains.HR, cfg.Domain(model.DomainHR))
	assert.Equal(t, cfg.Domains.QA, cfg.Domain(model.DomainQA))
}

func TestManifestPath(t *testing.T) {
	dc := DomainConfig{ChunksPath: "./data/indexes/chunks_hr.jsonl"}
	assert.Equal(t, "./data/indexes/chunks_hr_filenames.txt", dc.ManifestPath())

	// 无扩展名时直接追加后缀
	dc = DomainConfig{ChunksPath: "./data/chunks"}
	assert.Equal(t, "./data/chunks_filenames.txt", dc.ManifestPath())
}
