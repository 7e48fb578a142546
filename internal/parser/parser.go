package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/divya-pal4/study-assitant-rag/internal/models"
)

// SupportedExtensions lists the document types ExtractText understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".md", ".txt"}

// ExtractText returns the plain text of a document, chosen by file extension.
func ExtractText(filePath string) (string, error) {
	var (
		content string
		err     error
	)
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		content, err = parsePDF(filePath)
	case ".docx":
		content, err = parseDOCX(filePath)
	case ".pptx":
		content, err = parsePPTX(filePath)
	case ".xlsx":
		content, err = parseXLSX(filePath)
	case ".xlsm", ".xltx":
		content, err = parseWorkbook(filePath)
	case ".md":
		content, err = parseMarkdown(filePath)
	case ".txt":
		content, err = parseText(filePath)
	default:
		return "", fmt.Errorf("%w: unsupported file format %q (supported: %s)",
			models.ErrInput, ext, strings.Join(SupportedExtensions, ", "))
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrInput, filePath, err)
	}
	return content, nil
}

// ExtractChunks extracts the text of a document and splits it into chunks of
// wordsPerChunk words.
func ExtractChunks(filePath string, wordsPerChunk int) ([]string, error) {
	content, err := ExtractText(filePath)
	if err != nil {
		return nil, err
	}
	chunks := ChunkWords(content, wordsPerChunk)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", models.ErrNoChunks, filePath)
	}
	return chunks, nil
}

func parsePDF(filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	// GetContent returns the raw document.xml body
	content := r.Editable().GetContent()
	var sb strings.Builder
	for _, p := range strings.Split(content, "</w:p>") {
		line := extractTextFromXML(p, "w:t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var slides []*zip.File
	for _, file := range f.File {
		if strings.HasPrefix(file.Name, "ppt/slides/slide") && strings.HasSuffix(file.Name, ".xml") {
			slides = append(slides, file)
		}
	}
	// slide10.xml must come after slide9.xml
	sort.Slice(slides, func(a, b int) bool {
		if len(slides[a].Name) != len(slides[b].Name) {
			return len(slides[a].Name) < len(slides[b].Name)
		}
		return slides[a].Name < slides[b].Name
	})

	var sb strings.Builder
	for _, file := range slides {
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		sb.WriteString(extractTextFromXML(string(data), "a:t"))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		sb.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				sb.WriteString(cell.String() + "\t")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// parseWorkbook handles the macro/template workbook variants tealeg/xlsx rejects.
func parseWorkbook(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		sb.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				sb.WriteString(cell + "\t")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func parseMarkdown(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return markdownToText(data)
}

// markdownToText drops markdown syntax and keeps the readable text.
func markdownToText(src []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractTextFromXML(xmlContent, tag string) string {
	var sb strings.Builder
	open, closing := "<"+tag, "</"+tag+">"
	rest := xmlContent
	for {
		start := strings.Index(rest, open)
		if start < 0 {
			break
		}
		rest = rest[start+len(open):]
		// skip <w:tab/>, <w:tbl> and similar tags sharing the prefix
		if len(rest) == 0 || (rest[0] != '>' && rest[0] != ' ') {
			continue
		}
		gt := strings.Index(rest, ">")
		if gt < 0 {
			break
		}
		if gt > 0 && rest[gt-1] == '/' {
			rest = rest[gt+1:]
			continue
		}
		rest = rest[gt+1:]
		end := strings.Index(rest, closing)
		if end < 0 {
			break
		}
		sb.WriteString(rest[:end] + " ")
		rest = rest[end+len(closing):]
	}
	return sb.String()
}

// ChunkWords splits content on whitespace into chunks of at most wordsPerChunk words.
func ChunkWords(content string, wordsPerChunk int) []string {
	if wordsPerChunk <= 0 {
		wordsPerChunk = models.DefaultWordsPerChunk
	}
	words := strings.Fields(content)
	var chunks []string
	for start := 0; start < len(words); start += wordsPerChunk {
		end := min(start+wordsPerChunk, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
