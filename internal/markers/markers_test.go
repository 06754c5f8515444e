package markers

import "testing"

func TestFind_BothBracketForms(t *testing.T) {
	lines := []string{"intro", "【MAIN_START】", "body", "[MAIN_START]"}
	if got := Find(lines, MainStart); got != 1 {
		t.Errorf("expected full-width marker at 1, got %d", got)
	}
	if got := FindFrom(lines, MainStart, 2); got != 3 {
		t.Errorf("expected ASCII marker at 3, got %d", got)
	}
	if got := Find(lines, TOCStart); got != -1 {
		t.Errorf("expected -1 for missing marker, got %d", got)
	}
}

func TestSplit(t *testing.T) {
	before, after, ok := Split("  lead [TABLE_START] tail ", TableStart)
	if !ok {
		t.Fatal("expected marker to be found")
	}
	if before != "lead" {
		t.Errorf("expected before %q, got %q", "lead", before)
	}
	if after != "tail" {
		t.Errorf("expected after %q, got %q", "tail", after)
	}

	if _, _, ok := Split("no marker here", TableEnd); ok {
		t.Error("expected ok=false without marker")
	}
}

func TestStripAll(t *testing.T) {
	out, removed := StripAll("[TOC_END] 【TABLE_END】 text")
	if !removed {
		t.Fatal("expected markers to be removed")
	}
	if out != "text" {
		t.Errorf("expected %q, got %q", "text", out)
	}

	out, removed = StripAll("  plain line ")
	if removed {
		t.Error("expected nothing removed")
	}
	if out != "  plain line " {
		t.Errorf("expected line untouched, got %q", out)
	}
}

func TestKindString(t *testing.T) {
	if TableStart.Token() != "[TABLE_START]" {
		t.Errorf("unexpected token %q", TableStart.Token())
	}
	if Kind(99).String() != "UNKNOWN" {
		t.Errorf("expected UNKNOWN for out-of-range kind")
	}
}
