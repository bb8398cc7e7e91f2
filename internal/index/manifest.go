package index

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// WriteManifest 将已处理文件名清单写入 path。
// 清单是面向人的状态记录：带注释头、按文件名排序，检索正确性不依赖它。
func WriteManifest(path string, filenames []string) error {
	sorted := make([]string, len(filenames))
	copy(sorted, filenames)
	sort.Strings(sorted)

	return atomicWrite(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		fmt.Fprintln(bw, "# 本次索引构建处理的文件")
		fmt.Fprintf(bw, "# 文件总数: %d\n", len(sorted))
		fmt.Fprintln(bw, "# 由索引流水线自动生成")
		fmt.Fprintln(bw)
		for _, name := range sorted {
			fmt.Fprintln(bw, name)
		}
		return bw.Flush()
	})
}

// ReadManifest 读取清单，忽略空行与 # 开头的注释行，不要求任何顺序。
func ReadManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var filenames []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		filenames = append(filenames, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return filenames, nil
}
