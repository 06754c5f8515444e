package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_Flatten(t *testing.T) {
	input := `# Python Basics

Intro text
over two lines.

## 1. Variables

- first *point*
- second point

3. third
4. fourth

| Name | Type |
| ---- | ---- |
| x    | int  |

` + "```\ncode line\n```\n"

	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "Python Basics" {
		t.Errorf("expected title from first h1, got %q", doc.Title)
	}

	want := strings.Join([]string{
		"Python Basics",
		"",
		"Intro text",
		"over two lines.",
		"",
		"1. Variables",
		"",
		"- first point",
		"- second point",
		"",
		"3. third",
		"4. fourth",
		"",
		"| Name | Type |",
		"| --- | --- |",
		"| x | int |",
		"",
		"code line",
	}, "\n")
	if doc.Text != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, doc.Text)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := "Just some plain text.\n\nAnother paragraph."
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "readme.markdown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "readme" {
		t.Errorf("expected title %q, got %q", "readme", doc.Title)
	}
	if doc.Text != "Just some plain text.\n\nAnother paragraph." {
		t.Errorf("unexpected text %q", doc.Text)
	}
}

func TestMarkdownParser_Empty(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
}
