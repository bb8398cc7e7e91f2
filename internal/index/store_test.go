package index

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	return NewStore(
		filepath.Join(dir, "index_qa.hvix"),
		filepath.Join(dir, "chunks_qa.jsonl"),
		filepath.Join(dir, "chunks_qa_filenames.txt"),
	)
}

func buildTestIndex(t *testing.T, vecs [][]float32) *Flat {
	idx, err := NewFlat(len(vecs[0]))
	require.NoError(t, err)
	require.NoError(t, idx.Add(vecs))
	return idx
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	s := float32(math.Sqrt(0.5))
	idx := buildTestIndex(t, [][]float32{{1, 0}, {0, 1}, {s, s}})
	chunks := []ChunkRow{
		{Text: "如何重置密码", Source: "faq.md"},
		{Text: "VPN 连接失败排查", Source: "faq.md"},
		{Text: "打印机驱动安装", Source: "printer.txt"},
	}

	require.False(t, store.Available())
	require.NoError(t, store.Save(idx, chunks, []string{"faq.md", "printer.txt"}))
	require.True(t, store.Available())

	arts, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, arts.Index.Len())
	assert.Equal(t, 2, arts.Index.Dimensions())
	assert.Equal(t, chunks, arts.Chunks)

	// 位置同一性：第 i 个向量检索命中后映射回第 i 行分块
	hits, err := arts.Index.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "VPN 连接失败排查", arts.Chunks[hits[0].Position].Text)
}

func TestStoreSaveRejectsCountMismatch(t *testing.T) {
	store := newTestStore(t)
	idx := buildTestIndex(t, [][]float32{{1, 0}, {0, 1}})

	err := store.Save(idx, []ChunkRow{{Text: "只有一行"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不一致")
	assert.False(t, store.Available())
}

func TestStoreLoadMissingArtifacts(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStoreProcessedFiles(t *testing.T) {
	store := newTestStore(t)
	idx := buildTestIndex(t, [][]float32{{1, 0}})
	require.NoError(t, store.Save(idx, []ChunkRow{{Text: "x"}}, []string{"b.pdf", "a.txt"}))

	// 清单按文件名排序写出
	assert.Equal(t, []string{"a.txt", "b.pdf"}, store.ProcessedFiles())
}

func TestIndexFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.hvix")
	s := float32(math.Sqrt(0.5))
	idx := buildTestIndex(t, [][]float32{{s, s}, {1, 0}})

	require.NoError(t, WriteIndex(idx, path))
	loaded, err := ReadIndex(path)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), loaded.Len())
	assert.Equal(t, idx.Dimensions(), loaded.Dimensions())

	hits, err := loaded.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Position)
}

func TestReadIndexRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.hvix")
	require.NoError(t, os.WriteFile(path, []byte("not an index"), 0o644))

	_, err := ReadIndex(path)
	assert.Error(t, err)
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "files.txt")

	require.NoError(t, WriteManifest(path, []string{"z.md", "a.md", "m.pdf"}))
	files, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "m.pdf", "z.md"}, files)
}
