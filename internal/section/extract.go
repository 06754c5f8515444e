// Package section strips the table of contents or preamble from a document
// before structural inference runs.
package section

import (
	"regexp"
	"strings"

	"github.com/dgallion1/coursemd/internal/markers"
)

// Path records which extraction rule produced a Result.
type Path string

const (
	PathMainStart     Path = "main-start"
	PathTOCEnd        Path = "toc-end"
	PathTOCHeuristic  Path = "toc-heuristic"
	PathTOCMarkerOnly Path = "toc-marker-only"
	PathNone          Path = "none"
)

// DefaultWindow is how many lines after a TOC-start marker are scanned for
// the first major section heading.
const DefaultWindow = 50

// Result is the main content region of a document.
type Result struct {
	Lines   []string
	Path    Path
	Excised int // Lines removed, marker lines included
}

// Extractor locates the main content of a document.
type Extractor struct {
	// Window bounds the forward scan from TOC-start. Zero means DefaultWindow.
	Window int
	// IsMajor reports whether a trimmed line is a major section heading
	// (chapter, appendix, conclusion...). Nil disables the heuristic scan.
	IsMajor func(line string) bool
}

// TOC entries such as "Chapter 1 Basics ........ 3" look like major headings
// but belong to the contents listing.
var tocEntryRe = regexp.MustCompile(`(?:[.…·]{2,}|\t)\s*\d+\s*$`)

// Extract returns the main content. Precedence: a main-content-start marker
// wins outright; otherwise a TOC-start marker excises up to its TOC-end
// marker, or up to the first major heading within the window, or just the
// marker line. Without markers the document is returned unchanged.
func (e Extractor) Extract(lines []string) Result {
	if i := markers.Find(lines, markers.MainStart); i >= 0 {
		_, after, _ := markers.Split(lines[i], markers.MainStart)
		out := make([]string, 0, len(lines)-i)
		if after != "" {
			out = append(out, after)
		}
		out = append(out, lines[i+1:]...)
		return Result{Lines: out, Path: PathMainStart, Excised: i + 1}
	}

	s := markers.Find(lines, markers.TOCStart)
	if s < 0 {
		return Result{Lines: copyLines(lines), Path: PathNone}
	}
	before, after, _ := markers.Split(lines[s], markers.TOCStart)

	if end := markers.FindFrom(lines, markers.TOCEnd, s+1); end >= 0 {
		_, tail, _ := markers.Split(lines[end], markers.TOCEnd)
		return Result{
			Lines:   splice(lines[:s], before, tail, lines[end+1:]),
			Path:    PathTOCEnd,
			Excised: end - s + 1,
		}
	}

	if j := e.scanMajor(lines, s); j >= 0 {
		return Result{
			Lines:   splice(lines[:s], before, "", lines[j:]),
			Path:    PathTOCHeuristic,
			Excised: j - s,
		}
	}

	return Result{
		Lines:   splice(lines[:s], before, after, lines[s+1:]),
		Path:    PathTOCMarkerOnly,
		Excised: 1,
	}
}

func (e Extractor) scanMajor(lines []string, start int) int {
	if e.IsMajor == nil {
		return -1
	}
	window := e.Window
	if window <= 0 {
		window = DefaultWindow
	}
	last := min(start+window, len(lines)-1)
	for j := start + 1; j <= last; j++ {
		t := strings.TrimSpace(lines[j])
		if t == "" || tocEntryRe.MatchString(t) {
			continue
		}
		if e.IsMajor(t) {
			return j
		}
	}
	return -1
}

// splice joins head, the optional text fragments left on marker lines, and
// tail into a fresh slice.
func splice(head []string, before, after string, tail []string) []string {
	out := make([]string, 0, len(head)+len(tail)+2)
	out = append(out, head...)
	if before != "" {
		out = append(out, before)
	}
	if after != "" {
		out = append(out, after)
	}
	return append(out, tail...)
}

func copyLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
