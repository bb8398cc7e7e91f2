// Package extractor 负责从异构文档格式中提取纯文本。
package extractor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"hv-search-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

// 整篇文档提取结果低于该字符数时，提示可能是需要 OCR 的纯图片 PDF。
const minDocumentChars = 50

// 单页提取结果低于该字符数时触发备用提取策略。
const minPageChars = 10

// supportedExtensions 是索引流程识别的文件后缀。
var supportedExtensions = []string{".txt", ".md", ".pdf"}

// Extract 根据文件后缀提取纯文本。
// 不支持的后缀返回空字符串并记录日志，提取失败同样返回空字符串而不是报错：
// 单个文档的失败不应中断整个索引流程。
func Extract(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".txt", ".md":
		return readTextFile(filePath)
	case ".pdf":
		return readPDFFile(filePath)
	default:
		log.Warnf("[Extractor] 不支持的文件后缀: %s (%s)", ext, filePath)
		return ""
	}
}

// CollectFiles 递归收集目录下所有受支持的文档，去重并按路径排序。
func CollectFiles(dir string) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// 单个子目录不可读时跳过，不中断整体遍历
			log.Warnf("[Extractor] 遍历 %s 出错: %v", path, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, s := range supportedExtensions {
			if ext == s {
				seen[path] = struct{}{}
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历文档目录 '%s' 失败: %w", dir, err)
	}
	files := make([]string, 0, len(seen))
	for p := range seen {
		files = append(files, p)
	}
	sort.Strings(files)
	return files, nil
}

// readTextFile 读取纯文本文件。
func readTextFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("[Extractor] 读取文本文件失败: %s, err=%v", path, err)
		return ""
	}
	return string(data)
}

// readPDFFile 逐页提取 PDF 文本，尽力而为。
// 每页先尝试按阅读顺序提取；结果过短时退回按行布局提取；单页失败只产生空页，
// 不中断其余页面。整篇结果过短时输出诊断告警，提示可能需要 OCR。
func readPDFFile(path string) string {
	f, reader, err := pdf.Open(path)
	if err != nil {
		log.Errorf("[Extractor] 打开 PDF 失败: %s, err=%v", path, err)
		return ""
	}
	defer f.Close()

	var pages []string
	total := reader.NumPage()
	for num := 1; num <= total; num++ {
		text := extractPage(reader, num, path)
		pages = append(pages, text)
	}

	fullText := strings.Join(pages, "\n")
	if utf8.RuneCountInString(strings.TrimSpace(fullText)) < minDocumentChars {
		log.Warnf("[Extractor] PDF '%s' 仅提取到 %d 个字符，可能是需要 OCR 的图片型文档", path, len(fullText))
	}
	return fullText
}

// extractPage 提取单页文本，内部吸收 panic：个别损坏页面不应拖垮整篇文档。
func extractPage(reader *pdf.Reader, num int, path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("[Extractor] 处理 PDF 第 %d 页失败: %s, err=%v", num, path, r)
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}

	plain, err := page.GetPlainText(nil)
	if err != nil {
		log.Warnf("[Extractor] PDF 第 %d 页常规提取失败: %s, err=%v", num, path, err)
		plain = ""
	}

	// 常规提取结果过短时，改用按行布局提取兜底
	if utf8.RuneCountInString(strings.TrimSpace(plain)) < minPageChars {
		if alt := extractPageByRows(page); alt != "" {
			plain = alt
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(plain)) < minPageChars {
		log.Warnf("[Extractor] PDF 第 %d 页几乎没有可提取文本: %s", num, path)
	}
	return plain
}

// extractPageByRows 按文本行坐标重排页面内容，作为布局感知的备用策略。
func extractPageByRows(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	for _, row := range rows {
		for _, word := range row.Content {
			buf.WriteString(word.S)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
