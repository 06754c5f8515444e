// Package classify assigns heading depth and list status to each line of a
// reassembled document and rewrites it as Markdown.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/coursemd/internal/document"
)

// Classifier applies an ordered rule cascade to lines. It keeps no state
// between calls and is safe for concurrent use.
type Classifier struct {
	rules []Rule
	major patternRule
	toc   *regexp.Regexp
	cfg   Rules
}

// New compiles r into a Classifier.
func New(r Rules) (*Classifier, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	lists := &listMatcher{bullets: r.ListBullets, canonical: r.CanonicalBullet}

	major := patternRule{name: "major", depth: 1}
	if len(r.MajorKeywords) > 0 {
		major.patterns = append(major.patterns, regexp.MustCompile(
			`^(?i:`+alternation(r.MajorKeywords)+`)(?:\s+(?:[A-Z]|[IVX]{1,4}|\d{1,3}))?\s*(?:[:：].*)?$`))
	}
	if len(r.NumberedMajorKeywords) > 0 {
		major.patterns = append(major.patterns, numberedKeyword(r.NumberedMajorKeywords))
	}
	for _, p := range r.MajorPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("major pattern %q: %w", p, err)
		}
		major.patterns = append(major.patterns, re)
	}

	rules := []Rule{
		lengthGuard{max: r.MaxHeadingLength, lists: lists},
		major,
	}
	if len(r.SubSectionKeywords) > 0 {
		rules = append(rules, patternRule{
			name: "sub-section", depth: 2,
			patterns: []*regexp.Regexp{numberedKeyword(r.SubSectionKeywords)},
		})
	}
	rules = append(rules, outlineRule{base: r.OutlineBaseDepth})
	if len(r.StepKeywords) > 0 {
		rules = append(rules, patternRule{
			name: "step", depth: 3,
			patterns: []*regexp.Regexp{numberedKeyword(r.StepKeywords)},
		})
	}
	if len(r.SecondaryBullets) > 0 {
		rules = append(rules, glyphRule{name: "secondary-bullet", depth: 3, glyphs: r.SecondaryBullets})
	}
	if f := r.SubHeadingFallback; f.Enabled {
		rules = append(rules, shortLineRule{depth: 3, maxChars: f.MaxChars, minNext: f.MinNextChars, lists: lists})
	}
	rules = append(rules, defaultRule{lists: lists})

	c := &Classifier{rules: rules, major: major, cfg: r}
	if len(r.TOCTitles) > 0 {
		c.toc = regexp.MustCompile(`^(?i:` + alternation(r.TOCTitles) + `)\s*[:：]?$`)
	}
	return c, nil
}

// Rules returns the configuration the classifier was built from.
func (c *Classifier) Rules() Rules { return c.cfg }

// ClassifyLine runs the cascade on one line. next is the following line of
// the document, consulted only by the short-line fallback.
func (c *Classifier) ClassifyLine(line, next string) Classification {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Classification{Rule: "blank"}
	case isTableRow(trimmed):
		return Classification{Text: line, Rule: "table-row"}
	}
	for _, r := range c.rules {
		if cl, ok := r.Apply(trimmed, next); ok {
			return cl
		}
	}
	return Classification{Text: trimmed, Rule: "default"}
}

// IsMajorSection reports whether line has a chapter-level heading form,
// ignoring the length guard.
func (c *Classifier) IsMajorSection(line string) bool {
	return c.major.matches(strings.TrimSpace(line))
}

// Counts summarizes one Annotate pass.
type Counts struct {
	Headings   int
	ListItems  int
	PageBreaks int
	TOCLines   int
	TableRows  int
}

// Apply classifies text and returns it as Markdown.
func (c *Classifier) Apply(text string) string {
	out, _ := c.Annotate(document.SplitLines(text))
	return strings.Join(out, "\n")
}

// Annotate classifies lines in order and returns the emitted lines.
func (c *Classifier) Annotate(lines []string) ([]string, Counts) {
	p := &pass{c: c, out: make([]string, 0, len(lines)+len(lines)/4)}
	for i, line := range lines {
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		p.line(line, next)
	}
	if p.blankAfter {
		p.out = append(p.out, "")
	}
	return p.out, p.counts
}

// pass carries the state of one document: whether a heading was emitted
// yet and whether the lines belong to an in-document table of contents.
type pass struct {
	c          *Classifier
	out        []string
	counts     Counts
	tocSeen    bool
	inTOC      bool
	blanks     int
	blankAfter bool
}

func (p *pass) line(line, next string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		p.blanks++
		p.blankAfter = false
		p.out = append(p.out, "")
		if p.inTOC && p.blanks >= p.c.cfg.TOCEndBlankLines {
			p.inTOC = false
		}
		return
	}
	p.blanks = 0

	if !p.tocSeen && p.c.toc != nil && p.c.toc.MatchString(trimmed) {
		p.tocSeen, p.inTOC = true, true
		p.heading(1, CleanTitle(trimmed))
		return
	}
	if p.inTOC {
		p.counts.TOCLines++
		p.emit(trimmed)
		return
	}

	cl := p.c.ClassifyLine(line, next)
	switch {
	case cl.Rule == "table-row":
		p.counts.TableRows++
		p.emit(cl.Text)
	case cl.Depth > 0:
		p.heading(cl.Depth, cl.Text)
	default:
		if cl.ListItem {
			p.counts.ListItems++
		}
		p.emit(cl.Text)
	}
}

func (p *pass) emit(s string) {
	if p.blankAfter {
		p.out = append(p.out, "")
		p.blankAfter = false
	}
	p.out = append(p.out, s)
}

// heading writes a heading line with a blank line on both sides, preceded
// by the page-break token for every chapter-level heading but the first.
func (p *pass) heading(depth int, title string) {
	if n := len(p.out); n > 0 && p.out[n-1] != "" {
		p.out = append(p.out, "")
	}
	p.blankAfter = false
	if depth == 1 && p.counts.Headings > 0 && p.c.cfg.PageBreak != "" {
		p.out = append(p.out, p.c.cfg.PageBreak)
		p.counts.PageBreaks++
	}
	p.out = append(p.out, strings.Repeat(p.c.cfg.HeadingMarker, depth)+" "+title)
	p.counts.Headings++
	p.blankAfter = true
}

// CollapseBlankLines replaces every run of three or more blank lines with a
// single blank line. Shorter runs are kept.
func CollapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	run := 0
	flush := func() {
		if run >= 3 {
			run = 1
		}
		for range run {
			out = append(out, "")
		}
		run = 0
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			run++
			continue
		}
		flush()
		out = append(out, l)
	}
	flush()
	return strings.Join(out, "\n")
}

func isTableRow(trimmed string) bool {
	return strings.HasPrefix(trimmed, "|")
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(strings.TrimSpace(w))
	}
	return strings.Join(quoted, "|")
}

// numberedKeyword matches "<keyword> <number>" optionally followed by a
// separator and a title.
func numberedKeyword(words []string) *regexp.Regexp {
	return regexp.MustCompile(`^(?i:` + alternation(words) + `)\s+(?:\d+(?:\.\d+)*|[IVXLC]+)(?:$|[\s:：.\-–—)]\s*.*$)`)
}
