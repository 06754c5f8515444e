package markers

import "strings"

// Kind identifies a region marker embedded in a document.
type Kind int

const (
	TOCStart Kind = iota
	TOCEnd
	MainStart
	TableStart
	TableEnd
)

var names = map[Kind]string{
	TOCStart:   "TOC_START",
	TOCEnd:     "TOC_END",
	MainStart:  "MAIN_START",
	TableStart: "TABLE_START",
	TableEnd:   "TABLE_END",
}

// All lists every marker kind in a stable order.
var All = []Kind{TOCStart, TOCEnd, MainStart, TableStart, TableEnd}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// Forms returns the accepted surface forms of a marker: the ASCII-bracket
// form and the full-width-bracket form.
func (k Kind) Forms() []string {
	n := k.String()
	return []string{"[" + n + "]", "【" + n + "】"}
}

// Token returns the canonical ASCII-bracket form of the marker.
func (k Kind) Token() string {
	return "[" + k.String() + "]"
}

// index returns the byte offset and length of the first surface form of k
// found in line, or -1.
func index(line string, k Kind) (int, int) {
	best, size := -1, 0
	for _, f := range k.Forms() {
		if i := strings.Index(line, f); i >= 0 && (best < 0 || i < best) {
			best, size = i, len(f)
		}
	}
	return best, size
}

// Contains reports whether line carries marker k in either surface form.
func Contains(line string, k Kind) bool {
	i, _ := index(line, k)
	return i >= 0
}

// Find returns the index of the first line containing marker k, or -1.
func Find(lines []string, k Kind) int {
	return FindFrom(lines, k, 0)
}

// FindFrom is Find starting the scan at line index from.
func FindFrom(lines []string, k Kind, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(lines); i++ {
		if Contains(lines[i], k) {
			return i
		}
	}
	return -1
}

// Split cuts line around the first occurrence of marker k. before and after
// are the text on either side of the marker with surrounding whitespace
// trimmed; ok is false when the marker is absent.
func Split(line string, k Kind) (before, after string, ok bool) {
	i, n := index(line, k)
	if i < 0 {
		return line, "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+n:]), true
}

// StripAll removes every marker token of any kind from line. removed reports
// whether anything was stripped, in which case the result is trimmed.
func StripAll(line string) (out string, removed bool) {
	out = line
	for _, k := range All {
		for _, f := range k.Forms() {
			if strings.Contains(out, f) {
				out = strings.ReplaceAll(out, f, "")
				removed = true
			}
		}
	}
	if removed {
		out = strings.TrimSpace(out)
	}
	return out, removed
}
