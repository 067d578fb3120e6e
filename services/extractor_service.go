package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github/itish2003/admissions/logger"
)

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".html": true,
	".htm":  true,
}

// SupportedExtension reports whether files with this name can be ingested.
func SupportedExtension(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// TextExtractor turns files into plain text. PDFs go through UniPDF when a
// license key is configured and through ledongthuc/pdf otherwise.
type TextExtractor struct {
	useUniPDF bool
}

func NewTextExtractor(unidocLicenseKey string) *TextExtractor {
	if unidocLicenseKey == "" {
		return &TextExtractor{}
	}
	if err := license.SetMeteredKey(unidocLicenseKey); err != nil {
		logger.Warn("Failed to set Unidoc license key, falling back to the open PDF reader", "error", err)
		return &TextExtractor{}
	}
	return &TextExtractor{useUniPDF: true}
}

// ExtractTextFromFile reads a file and returns its text content.
func (e *TextExtractor) ExtractTextFromFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(content), nil
	case ".html", ".htm":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
		return extractMainContent(doc.Selection), nil
	case ".pdf":
		if e.useUniPDF {
			return extractTextWithUniPDF(path)
		}
		return extractTextWithPDFReader(path)
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

// extractTextWithUniPDF uses UniPDF to get all text from a PDF file.
func extractTextWithUniPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// extractTextWithPDFReader reads page by page and skips pages whose text
// cannot be decoded.
func extractTextWithPDFReader(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			logger.Warn("Failed to extract text from PDF page", "file", filepath.Base(path), "page", i, "error", err)
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
