// Package parser turns uploaded files into plain text for conversion.
// Structure the source format already carries (headings, tables) is
// flattened into the line conventions the classifier understands.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/coursemd/internal/document"
)

// ErrUnsupported is returned by ForFile for unknown extensions.
var ErrUnsupported = errors.New("unsupported file extension")

// Parser converts raw document bytes into plain text.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// Options tunes the parsers returned by ForFile.
type Options struct {
	// PDFFallback retries with the pdftotext binary when the Go reader fails.
	PDFFallback bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallback}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename drops the directory and extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// textBuilder accumulates output lines, keeping a single blank line
// between blocks.
type textBuilder struct {
	lines []string
}

// block appends text as its own block.
func (b *textBuilder) block(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if n := len(b.lines); n > 0 && b.lines[n-1] != "" {
		b.lines = append(b.lines, "")
	}
	b.lines = append(b.lines, document.SplitLines(text)...)
}

// table appends rows as canonical pipe-table rows, the first row being
// the header.
func (b *textBuilder) table(rows [][]string) {
	var width int
	for _, r := range rows {
		width = max(width, len(r))
	}
	if width == 0 {
		return
	}
	var sb strings.Builder
	for i, r := range rows {
		sb.WriteString(pipeRow(r, width))
		sb.WriteByte('\n')
		if i == 0 {
			sb.WriteString(pipeRow(repeat("---", width), width))
			sb.WriteByte('\n')
		}
	}
	b.block(sb.String())
}

func (b *textBuilder) String() string {
	return strings.Join(b.lines, "\n")
}

func pipeRow(cells []string, width int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i := range width {
		cell := ""
		if i < len(cells) {
			cell = strings.Join(strings.Fields(cells[i]), " ")
			cell = strings.ReplaceAll(cell, "|", `\|`)
		}
		sb.WriteString(" " + cell + " |")
	}
	return sb.String()
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}
