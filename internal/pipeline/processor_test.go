package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"hv-search-go/internal/chunker"
	"hv-search-go/internal/config"
	"hv-search-go/internal/index"
	"hv-search-go/internal/model"
	"hv-search-go/pkg/embedding"
	"hv-search-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCodec 把每个空格分隔的词当作一个 token，避免测试依赖真实词表。
type wordCodec struct{}

func (wordCodec) Encode(text string) []int {
	words := strings.Fields(text)
	tokens := make([]int, len(words))
	for i := range words {
		tokens[i] = i
	}
	return tokens
}

func (wordCodec) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		words[i] = "w" + strconv.Itoa(tok)
	}
	return strings.Join(words, " ")
}

func newTestPipelineConfig(t *testing.T, docs map[string]string) *config.Config {
	docsDir := t.TempDir()
	outDir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0o644))
	}
	dc := config.DomainConfig{
		DocumentsFolder: docsDir,
		IndexPath:       filepath.Join(outDir, "index_qa.hvix"),
		ChunksPath:      filepath.Join(outDir, "chunks_qa.jsonl"),
		ChunkSize:       10,
		Overlap:         2,
	}
	return &config.Config{Domains: config.DomainsConfig{QA: dc, HR: dc}}
}

type recordingInvalidator struct {
	invalidated []model.Domain
}

func (r *recordingInvalidator) Invalidate(d model.Domain) {
	r.invalidated = append(r.invalidated, d)
}

func TestProcessBuildsArtifacts(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "palabra"
	}
	cfg := newTestPipelineConfig(t, map[string]string{
		"faq.md":    strings.Join(words, " "), // 25 token，窗口 10 步长 8 → 3 个分块
		"corto.txt": "respuesta breve",        // 2 token → 1 个分块
		"skip.bin":  "ignorado",
	})

	inv := &recordingInvalidator{}
	p := NewProcessor(cfg, embedding.NewMockClient(32), chunker.New(wordCodec{}), nil, inv)
	err := p.Process(context.Background(), tasks.ReindexTask{Domain: model.DomainQA, RequestedBy: "test"})
	require.NoError(t, err)

	dc := cfg.Domain(model.DomainQA)
	store := index.NewStore(dc.IndexPath, dc.ChunksPath, dc.ManifestPath())
	require.True(t, store.Available())

	arts, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, arts.Index.Len())
	assert.Len(t, arts.Chunks, 4)

	// 分块记录来源文件名
	sources := make(map[string]int)
	for _, row := range arts.Chunks {
		sources[row.Source]++
	}
	assert.Equal(t, 3, sources["faq.md"])
	assert.Equal(t, 1, sources["corto.txt"])

	// 清单记录已处理文件，不含被跳过的后缀
	assert.ElementsMatch(t, []string{"faq.md", "corto.txt"}, store.ProcessedFiles())

	// 重建完成后让检索缓存失效
	assert.Equal(t, []model.Domain{model.DomainQA}, inv.invalidated)
}

func TestCollectDocumentsLocalFolderNeedsNoCleanup(t *testing.T) {
	cfg := newTestPipelineConfig(t, map[string]string{"faq.md": "pregunta respuesta"})

	p := NewProcessor(cfg, embedding.NewMockClient(32), chunker.New(wordCodec{}), nil, nil)
	files, cleanup, err := p.collectDocuments(context.Background(), cfg.Domain(model.DomainQA))
	require.NoError(t, err)
	require.Len(t, files, 1)
	// 本地目录不是流水线创建的，不能删
	assert.Nil(t, cleanup)
}

func TestCollectDocumentsRemovesTempDirOnDownloadFailure(t *testing.T) {
	client, err := minio.New("127.0.0.1:1", &minio.Options{
		Creds: credentials.NewStaticV4("test", "test", ""),
	})
	require.NoError(t, err)

	cfg := newTestPipelineConfig(t, nil)
	dc := cfg.Domain(model.DomainQA)
	dc.Bucket = "documentos"

	before, err := filepath.Glob(filepath.Join(os.TempDir(), "hv-search-docs-*"))
	require.NoError(t, err)

	p := NewProcessor(cfg, embedding.NewMockClient(32), chunker.New(wordCodec{}), client, nil)
	_, cleanup, err := p.collectDocuments(context.Background(), dc)
	require.Error(t, err)
	assert.Nil(t, cleanup)

	// 下载失败时临时目录已被删除，不留残余
	after, err := filepath.Glob(filepath.Join(os.TempDir(), "hv-search-docs-*"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProcessFailsWithoutDocuments(t *testing.T) {
	cfg := newTestPipelineConfig(t, nil)

	p := NewProcessor(cfg, embedding.NewMockClient(32), chunker.New(wordCodec{}), nil, nil)
	err := p.Process(context.Background(), tasks.ReindexTask{Domain: model.DomainQA})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "没有可索引的文档")

	dc := cfg.Domain(model.DomainQA)
	store := index.NewStore(dc.IndexPath, dc.ChunksPath, dc.ManifestPath())
	assert.False(t, store.Available())
}
