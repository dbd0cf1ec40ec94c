// Package loader turns uploaded files into plain text for extraction
// and embedding. PDF is the primary format; plain text and HTML
// exports are supported as well.
package loader

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

const (
	// MaxPDFPages caps how many pages one upload may carry.
	MaxPDFPages = 100

	// MaxExtractedTextSize caps extracted text at 1MB.
	MaxExtractedTextSize = 1024 * 1024
)

// Result is the extracted text plus what the loader learned about it.
type Result struct {
	Text      string
	PageCount int
	WordCount int
}

// PDF extracts plain text from PDF bytes, page by page. Pages that
// fail extraction are skipped rather than failing the whole upload.
func PDF(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("loader: open pdf: %w", err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return nil, fmt.Errorf("loader: pdf has no pages")
	}
	if totalPages > MaxPDFPages {
		return nil, fmt.Errorf("loader: pdf has %d pages, max allowed is %d", totalPages, MaxPDFPages)
	}

	var b strings.Builder
	wordCount := 0
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		cleaned := cleanText(text)
		if cleaned == "" {
			continue
		}
		b.WriteString(cleaned)
		b.WriteString("\n")
		wordCount += countWords(cleaned)

		if b.Len() > MaxExtractedTextSize {
			break
		}
	}

	text := truncateRunes(b.String(), MaxExtractedTextSize)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("loader: pdf contains no extractable text")
	}

	return &Result{Text: text, PageCount: totalPages, WordCount: wordCount}, nil
}

// Text wraps pre-extracted plain text in a Result.
func Text(data []byte) (*Result, error) {
	cleaned := cleanText(string(data))
	if cleaned == "" {
		return nil, fmt.Errorf("loader: text file is empty")
	}
	return &Result{Text: cleaned, WordCount: countWords(cleaned)}, nil
}

// HTML strips markup from an HTML export and keeps the visible text.
func HTML(data []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loader: parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	cleaned := cleanText(doc.Text())
	if cleaned == "" {
		return nil, fmt.Errorf("loader: html contains no text")
	}
	return &Result{Text: cleaned, WordCount: countWords(cleaned)}, nil
}

// ForFilename picks the loader by file extension; unknown extensions
// are treated as plain text.
func ForFilename(name string, data []byte) (*Result, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return PDF(data)
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return HTML(data)
	default:
		return Text(data)
	}
}

// truncateRunes caps text at max bytes without cutting through a
// multi-byte rune.
func truncateRunes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// cleanText strips null bytes and collapses runs of whitespace while
// preserving line breaks, which the field patterns rely on.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune('\n')
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func countWords(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		// CJK text has no spaces; count each Han rune as a word.
		if unicode.Is(unicode.Han, r) {
			n++
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}
