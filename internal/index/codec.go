package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// 索引文件格式：
//
//	magic "HVIX" | version uint16 | dim uint32 | count uint32 | count*dim float32 (小端)
const (
	indexMagic   = "HVIX"
	indexVersion = uint16(1)
)

// writeIndexFile 将索引序列化到 w。
func writeIndexFile(w io.Writer, f *Flat) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(indexMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, indexVersion); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(f.dim)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.vectors))); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, vec := range f.vectors {
		for _, x := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// readIndexFile 从 r 反序列化索引。
func readIndexFile(r io.Reader) (*Flat, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("读取索引文件头失败: %w", err)
	}
	if string(magic) != indexMagic {
		return nil, fmt.Errorf("非法的索引文件头: %q", magic)
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("读取索引版本失败: %w", err)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("不支持的索引版本: %d", version)
	}

	var dim, count uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("读取索引维度失败: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("读取索引向量数失败: %w", err)
	}

	f, err := NewFlat(int(dim))
	if err != nil {
		return nil, err
	}

	rowBytes := make([]byte, int(dim)*4)
	f.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, rowBytes); err != nil {
			return nil, fmt.Errorf("读取第 %d 个向量失败: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(rowBytes[j*4:]))
		}
		f.vectors = append(f.vectors, vec)
	}
	return f, nil
}

// WriteIndex 将索引写入文件，先写临时文件再原子替换。
func WriteIndex(f *Flat, path string) error {
	return atomicWrite(path, func(w io.Writer) error {
		return writeIndexFile(w, f)
	})
}

// ReadIndex 从文件加载索引。
func ReadIndex(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return readIndexFile(file)
}

// atomicWrite 先写入同目录临时文件，成功后 rename 到目标路径。
// 重建期间旧产物保持完整可读，替换是单次 rename。
func atomicWrite(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dirOf(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()
	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("替换文件 '%s' 失败: %w", path, err)
	}
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[:i]
		}
	}
	return "."
}
