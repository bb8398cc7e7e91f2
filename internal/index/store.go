package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hv-search-go/pkg/log"
)

// ChunkRow 是分块表中的一行。行号即该分块在向量索引中的位置。
type ChunkRow struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Artifacts 是一个知识域加载后的全部检索产物。
type Artifacts struct {
	Index  *Flat
	Chunks []ChunkRow
}

// Store 管理单个知识域的三份持久化产物：向量索引、分块表、已处理文件清单。
// 索引与分块表必须成对存在，缺任意一份都视为该域不可用。
type Store struct {
	indexPath    string
	chunksPath   string
	manifestPath string
}

// NewStore 创建一个使用给定产物路径的 Store。
func NewStore(indexPath, chunksPath, manifestPath string) *Store {
	return &Store{
		indexPath:    indexPath,
		chunksPath:   chunksPath,
		manifestPath: manifestPath,
	}
}

// Available 报告索引与分块表是否都存在。
func (s *Store) Available() bool {
	return fileExists(s.indexPath) && fileExists(s.chunksPath)
}

// Save 持久化一次完整构建的产物。
// 分块数与向量数不一致是致命错误：写盘会固化错误的位置映射，必须在此中止。
// 三份文件均采用先写临时文件再 rename 的方式替换，旧产物整体让位于新产物。
func (s *Store) Save(idx *Flat, chunks []ChunkRow, processedFiles []string) error {
	if idx.Len() != len(chunks) {
		return fmt.Errorf("分块数 (%d) 与向量数 (%d) 不一致，中止写入以保护位置映射", len(chunks), idx.Len())
	}
	if err := ensureDir(s.indexPath); err != nil {
		return err
	}
	if err := ensureDir(s.chunksPath); err != nil {
		return err
	}

	if err := atomicWrite(s.chunksPath, func(w io.Writer) error {
		return writeChunkRows(w, chunks)
	}); err != nil {
		return fmt.Errorf("写入分块表失败: %w", err)
	}
	if err := WriteIndex(idx, s.indexPath); err != nil {
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	if err := WriteManifest(s.manifestPath, processedFiles); err != nil {
		// 清单只服务于状态展示，写入失败不影响检索正确性
		log.Warnf("[IndexStore] 写入已处理文件清单失败: %v", err)
	}

	log.Infof("[IndexStore] 索引产物已保存: %s (%d 个向量), %s (%d 行)",
		s.indexPath, idx.Len(), s.chunksPath, len(chunks))
	return nil
}

// Load 加载索引与分块表。任何一份缺失或两者行数不一致都视为域不可用。
func (s *Store) Load() (*Artifacts, error) {
	if !s.Available() {
		return nil, os.ErrNotExist
	}

	idx, err := ReadIndex(s.indexPath)
	if err != nil {
		return nil, fmt.Errorf("加载向量索引 '%s' 失败: %w", s.indexPath, err)
	}
	chunks, err := readChunkRows(s.chunksPath)
	if err != nil {
		return nil, fmt.Errorf("加载分块表 '%s' 失败: %w", s.chunksPath, err)
	}
	if idx.Len() != len(chunks) {
		return nil, fmt.Errorf("索引向量数 (%d) 与分块表行数 (%d) 不一致，产物已损坏", idx.Len(), len(chunks))
	}
	return &Artifacts{Index: idx, Chunks: chunks}, nil
}

// ProcessedFiles 返回清单中记录的已处理文件名，清单缺失时返回空列表。
func (s *Store) ProcessedFiles() []string {
	files, err := ReadManifest(s.manifestPath)
	if err != nil {
		return nil
	}
	return files
}

// writeChunkRows 以 JSON Lines 格式写出分块表，一行一条记录。
func writeChunkRows(w io.Writer, chunks []ChunkRow) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, row := range chunks {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("编码第 %d 行分块失败: %w", i, err)
		}
	}
	return bw.Flush()
}

// readChunkRows 按写入顺序读回分块表。
func readChunkRows(path string) ([]ChunkRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var rows []ChunkRow
	scanner := bufio.NewScanner(file)
	// 单个分块最长不超过数十 KB，1MB 上限留足余量
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row ChunkRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return nil, fmt.Errorf("解析第 %d 行分块失败: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("创建目录 '%s' 失败: %w", dir, err)
	}
	return nil
}
