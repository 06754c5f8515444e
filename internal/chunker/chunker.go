package chunker

import (
	"strings"

	"github.com/dgallion1/coursemd/internal/document"
	"github.com/dgallion1/coursemd/internal/markers"
)

// segmenter holds the single-pass state of Segment.
type segmenter struct {
	inTable bool
	acc     []string
	chunks  []document.Chunk
}

// Segment partitions lines into ordered chunks tagged text or
// table_candidate. Lines between a table-start and a table-end marker form a
// table_candidate chunk; everything else is text. Marker tokens are dropped,
// any other text sharing a line with a marker is kept. Concatenating the
// chunks reproduces the input minus marker tokens.
func Segment(lines []string) []document.Chunk {
	s := &segmenter{}

	for _, line := range lines {
		if s.boundaries(line) {
			continue
		}
		if rest, removed := markers.StripAll(line); removed {
			// Stray or nested marker: drop the token, keep the text.
			s.add(rest)
			continue
		}
		s.acc = append(s.acc, line)
	}

	// An unterminated table region is plain text.
	s.flush(document.KindText)
	return s.chunks
}

// boundaries opens and closes table regions at each marker on line, in
// order, so one line may hold a whole region. It reports whether any
// boundary was found; the text around the markers is kept.
func (s *segmenter) boundaries(line string) bool {
	found := false
	for {
		next := markers.TableStart
		if s.inTable {
			next = markers.TableEnd
		}
		before, after, ok := markers.Split(line, next)
		if !ok {
			break
		}
		found = true
		s.add(before)
		if s.inTable {
			s.flush(document.KindTableCandidate)
		} else {
			s.flush(document.KindText)
		}
		s.inTable = !s.inTable
		line = after
	}
	if found {
		s.add(line)
	}
	return found
}

func (s *segmenter) add(fragment string) {
	if rest, _ := markers.StripAll(fragment); strings.TrimSpace(rest) != "" {
		s.acc = append(s.acc, rest)
	}
}

func (s *segmenter) flush(kind document.ChunkKind) {
	if len(s.acc) == 0 {
		return
	}
	s.chunks = append(s.chunks, document.Chunk{
		Index: len(s.chunks),
		Kind:  kind,
		Lines: s.acc,
	})
	s.acc = nil
}

// Stats summarizes a chunk sequence.
type Stats struct {
	Chunks          int
	TableCandidates int
	Normalizable    int
}

// Summarize counts chunks by kind.
func Summarize(chunks []document.Chunk) Stats {
	st := Stats{Chunks: len(chunks)}
	for _, c := range chunks {
		if c.Kind == document.KindTableCandidate {
			st.TableCandidates++
		}
		if c.Normalizable() {
			st.Normalizable++
		}
	}
	return st
}
