// Package render produces a standalone HTML preview of converted Markdown:
// numbered heading anchors, a contents block for the top two heading
// levels, and page breaks as print CSS.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ErrRender indicates Markdown to HTML conversion failed.
var ErrRender = errors.New("html render failed")

// PageBreak is the token the classifier emits before chapter headings.
const PageBreak = "<!-- pagebreak -->"

// Raw HTML is not rendered, so the page-break comment travels through
// goldmark as a placeholder paragraph and is swapped afterwards.
const (
	pageBreakPlaceholder = "COURSEMD0PAGEBREAK0PLACEHOLDER"
	pageBreakParagraph   = "<p>" + pageBreakPlaceholder + "</p>"
	pageBreakDiv         = `<div class="page-break"></div>`
)

const page = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>%s</style>
</head>
<body>
%s%s
</body>
</html>`

const css = `@page { size: A4; margin: 20mm; }
body { font-family: "Noto Sans CJK TC", "Microsoft JhengHei", Arial, sans-serif; line-height: 1.9; color: #333; font-size: 14px; max-width: 860px; margin: 0 auto; padding: 0 16px; }
.toc-container { page-break-after: always; margin-bottom: 40px; }
.toc-header { text-align: center; font-size: 24px; font-weight: bold; border-bottom: 2px solid #333; padding-bottom: 10px; margin-bottom: 24px; }
.toc-list { list-style: none; padding: 0; }
.toc-item.h1 { font-weight: bold; margin-top: 12px; }
.toc-item.h2 { padding-left: 24px; }
.toc-link { color: #333; text-decoration: none; }
.page-break { page-break-after: always; break-after: page; }
table { border-collapse: collapse; margin: 12px 0; }
th, td { border: 1px solid #999; padding: 4px 10px; }
th { background: #f0f0f0; }`

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		),
	),
	goldmark.WithRendererOptions(goldhtml.WithXHTML()),
)

// TOCEntry is one line of the contents block.
type TOCEntry struct {
	Level int
	Title string
	ID    string
}

// HTML renders markdown as a complete HTML document titled title.
func HTML(markdown, title string) (string, error) {
	src := []byte(replacePageBreaks(markdown))
	doc := md.Parser().Parse(text.NewReader(src))
	entries := anchorHeadings(doc, src)

	var body bytes.Buffer
	if err := md.Renderer().Render(&body, src, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	out := strings.ReplaceAll(body.String(), pageBreakParagraph, pageBreakDiv)

	if title == "" {
		title = "Document"
	}
	return fmt.Sprintf(page, html.EscapeString(title), css, tocHTML(entries), out), nil
}

// replacePageBreaks turns page-break lines into placeholder paragraphs,
// padding them with blank lines so they never join a neighbouring block.
func replacePageBreaks(markdown string) string {
	lines := strings.Split(markdown, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) == PageBreak {
			out = append(out, "", pageBreakPlaceholder, "")
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// anchorHeadings gives every heading the id section-N, numbered in document
// order, and returns the level 1 and 2 headings.
func anchorHeadings(doc ast.Node, src []byte) []TOCEntry {
	var entries []TOCEntry
	n := 0
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		n++
		id := fmt.Sprintf("section-%d", n)
		h.SetAttributeString("id", []byte(id))
		if h.Level <= 2 {
			entries = append(entries, TOCEntry{Level: h.Level, Title: inlineText(h, src), ID: id})
		}
		return ast.WalkSkipChildren, nil
	})
	return entries
}

func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Value(src))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(sb.String())
}

func tocHTML(entries []TOCEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<div class="toc-container">` + "\n")
	sb.WriteString(`<div class="toc-header">Contents</div>` + "\n")
	sb.WriteString(`<ul class="toc-list">` + "\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, `<li class="toc-item h%d"><a href="#%s" class="toc-link">%s</a></li>`+"\n",
			e.Level, e.ID, html.EscapeString(e.Title))
	}
	sb.WriteString("</ul>\n</div>\n")
	return sb.String()
}
