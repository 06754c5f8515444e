package document

import "strings"

// Document is plain text handed to the conversion pipeline.
type Document struct {
	Title string // From metadata or filename
	Text  string // Raw text, one logical line per "\n"
}

// ChunkKind tags a chunk produced by the segmenter.
type ChunkKind string

const (
	KindText           ChunkKind = "text"
	KindTableCandidate ChunkKind = "table_candidate"
)

// MinTableLines is the smallest table_candidate chunk worth normalizing.
const MinTableLines = 2

// Chunk is a contiguous run of lines. The ordered chunk sequence partitions
// the extracted content with marker tokens removed.
type Chunk struct {
	Index int       // Sequence number within document
	Kind  ChunkKind // text or table_candidate
	Lines []string  // Verbatim lines
}

// Text returns the chunk lines joined with newlines.
func (c Chunk) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Normalizable reports whether the chunk should be sent for table
// normalization. Table candidates under MinTableLines lines are treated as
// plain text.
func (c Chunk) Normalizable() bool {
	return c.Kind == KindTableCandidate && len(c.Lines) >= MinTableLines
}

// SplitLines normalizes line endings and splits text into lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Lines flattens chunks back into one line sequence, in order.
func Lines(chunks []Chunk) []string {
	var out []string
	for _, c := range chunks {
		out = append(out, c.Lines...)
	}
	return out
}

// Join concatenates chunk contents in order.
func Join(chunks []Chunk) string {
	return strings.Join(Lines(chunks), "\n")
}
