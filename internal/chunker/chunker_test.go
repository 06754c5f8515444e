package chunker

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/coursemd/internal/document"
)

func TestSegment_ExplicitTable(t *testing.T) {
	lines := []string{
		"Intro",
		"[TABLE_START]",
		"Name",
		"Age",
		"Bob",
		"42",
		"[TABLE_END]",
		"Outro",
	}
	chunks := Segment(lines)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantKinds := []document.ChunkKind{document.KindText, document.KindTableCandidate, document.KindText}
	for i, c := range chunks {
		if c.Kind != wantKinds[i] {
			t.Errorf("chunk %d: expected kind %q, got %q", i, wantKinds[i], c.Kind)
		}
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
	}
	if got := chunks[1].Text(); got != "Name\nAge\nBob\n42" {
		t.Errorf("unexpected table text %q", got)
	}
	if got := document.Join(chunks); got != "Intro\nName\nAge\nBob\n42\nOutro" {
		t.Errorf("unexpected reassembly %q", got)
	}
}

func TestSegment_NoLoss(t *testing.T) {
	inputs := [][]string{
		{"a", "", "b"},
		{"[TABLE_START]", "x", "y", "[TABLE_END]"},
		{"a", "【TABLE_START】", "x", "", "y", "【TABLE_END】", "", "b", "[TABLE_START]", "tail"},
		{"[TABLE_END]", "a", "[TABLE_START]", "[TABLE_START]", "b", "[TABLE_END]"},
		{},
	}
	for _, lines := range inputs {
		var want []string
		for _, l := range lines {
			if !strings.Contains(l, "TABLE_") {
				want = append(want, l)
			}
		}
		got := document.Lines(Segment(lines))
		if !reflect.DeepEqual(got, want) {
			t.Errorf("input %q: expected %q, got %q", lines, want, got)
		}
	}
}

func TestSegment_UnterminatedTableIsText(t *testing.T) {
	chunks := Segment([]string{"a", "[TABLE_START]", "x", "y"})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Kind != document.KindText {
		t.Errorf("expected trailing chunk kind %q, got %q", document.KindText, chunks[1].Kind)
	}
}

func TestSegment_StrayEndIsDropped(t *testing.T) {
	chunks := Segment([]string{"a", "[TABLE_END]", "b"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if got := chunks[0].Text(); got != "a\nb" {
		t.Errorf("expected %q, got %q", "a\nb", got)
	}
}

func TestSegment_InlineMarkerText(t *testing.T) {
	chunks := Segment([]string{"before [TABLE_START] h1", "r1 [TABLE_END] after"})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Text() != "before" || chunks[1].Text() != "h1\nr1" || chunks[2].Text() != "after" {
		t.Errorf("unexpected chunks %q / %q / %q", chunks[0].Text(), chunks[1].Text(), chunks[2].Text())
	}
}

func TestSegment_RegionOnOneLine(t *testing.T) {
	chunks := Segment([]string{
		"intro",
		"[TABLE_START] a [TABLE_END]",
		"prose one",
		"prose two",
		"[TABLE_START]", "r1", "r2", "[TABLE_END]",
		"after",
	})

	want := []struct {
		kind document.ChunkKind
		text string
	}{
		{document.KindText, "intro"},
		{document.KindTableCandidate, "a"},
		{document.KindText, "prose one\nprose two"},
		{document.KindTableCandidate, "r1\nr2"},
		{document.KindText, "after"},
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Kind != w.kind || chunks[i].Text() != w.text {
			t.Errorf("chunk %d: expected %s %q, got %s %q", i, w.kind, w.text, chunks[i].Kind, chunks[i].Text())
		}
	}
	if chunks[1].Normalizable() {
		t.Error("expected single-line region not to be normalizable")
	}
	if !chunks[3].Normalizable() {
		t.Error("expected second region to stay separate and normalizable")
	}
}

func TestSegment_EmptyRegionsProduceNoChunks(t *testing.T) {
	chunks := Segment([]string{"[TABLE_START]", "[TABLE_END]"})
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestSummarize_SmallTableNotNormalizable(t *testing.T) {
	chunks := Segment([]string{
		"[TABLE_START]", "only", "[TABLE_END]",
		"[TABLE_START]", "h", "r", "[TABLE_END]",
	})
	st := Summarize(chunks)
	if st.Chunks != 2 || st.TableCandidates != 2 || st.Normalizable != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
	if chunks[0].Normalizable() {
		t.Error("expected single-line table candidate to be skipped")
	}
}
