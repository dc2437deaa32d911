package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "narrative-agent/errors"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ReadDocument loads the full text of a source document. Plain text is read
// as-is, markdown is flattened to its text content, and PDFs are extracted
// page by page with page markers preserved for evidence context.
func (p *Pipeline) ReadDocument(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read text file: %w", err)
		}
		return string(raw), nil
	case ".md", ".markdown":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read markdown file: %w", err)
		}
		return flattenMarkdown(raw), nil
	case ".pdf":
		return p.extractPDFText(path)
	default:
		return "", apperrors.WrapErrorf(apperrors.ErrUnsupportedFile,
			"%s (use .txt, .md, or .pdf)", filepath.Ext(path))
	}
}

// flattenMarkdown strips markup and keeps the readable text, so headings,
// emphasis and list syntax do not pollute tokenization downstream.
func flattenMarkdown(src []byte) string {
	doc := parser.New().Parse(src)

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			switch node.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.BlockQuote, *ast.CodeBlock:
				b.WriteString("\n")
			}
			return ast.GoToNext
		}
		if leaf := node.AsLeaf(); leaf != nil && len(leaf.Literal) > 0 {
			b.Write(leaf.Literal)
			if _, isCode := node.(*ast.CodeBlock); !isCode {
				b.WriteString(" ")
			}
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}

// extractPDFText extracts all text content from a PDF file, skipping pages
// that fail individually rather than aborting the document.
func (p *Pipeline) extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var fullText strings.Builder
	totalPages := r.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			p.logger.Warn("Skipping null page", zap.Int("page", pageNum))
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("Failed to extract text from page",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		fullText.WriteString(fmt.Sprintf("--- Page %d ---\n", pageNum))
		fullText.WriteString(text)
		fullText.WriteString("\n\n")
	}

	p.logger.Info("PDF text extraction completed",
		zap.String("path", path),
		zap.Int("pages", totalPages),
		zap.Int("characters", fullText.Len()))
	return fullText.String(), nil
}
