package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Classification is the verdict for one line. Depth 0 means the line is not
// a heading; Text is the heading title, the rewritten list item, or the
// trimmed line.
type Classification struct {
	Depth    int
	ListItem bool
	Text     string
	Rule     string
}

// Rule is one step of the classification cascade. Apply reports whether the
// rule decides the line; the first rule that does wins.
type Rule interface {
	Name() string
	Apply(line, next string) (Classification, bool)
}

// lengthGuard keeps long lines out of every heading rule.
type lengthGuard struct {
	max   int
	lists *listMatcher
}

func (lengthGuard) Name() string { return "length-guard" }

func (g lengthGuard) Apply(line, _ string) (Classification, bool) {
	if utf8.RuneCountInString(line) <= g.max {
		return Classification{}, false
	}
	c := g.lists.classify(line)
	c.Rule = g.Name()
	return c, true
}

// patternRule assigns a fixed depth to lines matching any of its patterns.
type patternRule struct {
	name     string
	depth    int
	patterns []*regexp.Regexp
}

func (r patternRule) Name() string { return r.name }

func (r patternRule) Apply(line, _ string) (Classification, bool) {
	if !r.matches(line) {
		return Classification{}, false
	}
	return Classification{Depth: r.depth, Text: CleanTitle(line), Rule: r.name}, true
}

func (r patternRule) matches(line string) bool {
	for _, re := range r.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Outline numbers: one to three digits per component so that years and
// quantities are not read as section numbers.
var outlineRe = regexp.MustCompile(`^(\d{1,3}(?:\.\d{1,3})*)[.\s]+(\S.*)$`)

// outlineRule maps "1." to base+1, "1.1" to base+2 and so on.
type outlineRule struct {
	base int
}

func (outlineRule) Name() string { return "outline" }

func (r outlineRule) Apply(line, _ string) (Classification, bool) {
	m := outlineRe.FindStringSubmatch(line)
	if m == nil {
		return Classification{}, false
	}
	depth := strings.Count(m[1], ".") + 1 + r.base
	return Classification{Depth: depth, Text: CleanTitle(line), Rule: r.Name()}, true
}

// glyphRule makes lines led by one of its glyphs a heading, dropping the glyph.
type glyphRule struct {
	name   string
	depth  int
	glyphs []string
}

func (r glyphRule) Name() string { return r.name }

func (r glyphRule) Apply(line, _ string) (Classification, bool) {
	rest, ok := cutGlyph(line, r.glyphs)
	if !ok || rest == "" {
		return Classification{}, false
	}
	return Classification{Depth: r.depth, Text: CleanTitle(rest), Rule: r.name}, true
}

var numericLeadRe = regexp.MustCompile(`^[\d.]+\s`)

// shortLineRule treats a short line that introduces a long one as a heading.
type shortLineRule struct {
	depth    int
	maxChars int
	minNext  int
	lists    *listMatcher
}

func (shortLineRule) Name() string { return "short-line" }

func (r shortLineRule) Apply(line, next string) (Classification, bool) {
	next = strings.TrimSpace(next)
	switch {
	case utf8.RuneCountInString(line) >= r.maxChars,
		utf8.RuneCountInString(next) <= r.minNext,
		numericLeadRe.MatchString(next),
		r.lists.isItem(line):
		return Classification{}, false
	}
	return Classification{Depth: r.depth, Text: CleanTitle(line), Rule: r.Name()}, true
}

// defaultRule always matches: list item or prose.
type defaultRule struct {
	lists *listMatcher
}

func (defaultRule) Name() string { return "default" }

func (r defaultRule) Apply(line, _ string) (Classification, bool) {
	c := r.lists.classify(line)
	c.Rule = r.Name()
	return c, true
}

var orderedItemRe = regexp.MustCompile(`^(?:\d{1,3}|[A-Za-z]|[ivxIVX]{1,4})[.)]\s+\S`)

// listMatcher recognizes bullet and ordered list items. Bullets are rewritten
// to the canonical glyph; ordered markers are kept as written.
type listMatcher struct {
	bullets   []string
	canonical string
}

func (m *listMatcher) isItem(line string) bool {
	if orderedItemRe.MatchString(line) {
		return true
	}
	_, ok := m.bullet(line)
	return ok
}

func (m *listMatcher) bullet(line string) (string, bool) {
	for _, b := range m.bullets {
		rest, ok := strings.CutPrefix(line, b)
		if !ok {
			continue
		}
		// A bullet needs whitespace after it so "-5" and "*emphasis*" stay prose.
		r, _ := utf8.DecodeRuneInString(rest)
		if r != ' ' && r != '\t' && r != '　' {
			continue
		}
		rest = strings.TrimSpace(rest)
		if rest == "" {
			continue
		}
		return rest, true
	}
	return "", false
}

func (m *listMatcher) classify(line string) Classification {
	if orderedItemRe.MatchString(line) {
		return Classification{ListItem: true, Text: line}
	}
	if rest, ok := m.bullet(line); ok {
		return Classification{ListItem: true, Text: m.canonical + " " + rest}
	}
	return Classification{Text: line}
}

func cutGlyph(line string, glyphs []string) (string, bool) {
	for _, g := range glyphs {
		if rest, ok := strings.CutPrefix(line, g); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

var (
	leaderRe        = regexp.MustCompile(`\s*[.…][.…·\s]*\d*\s*$`)
	decimalTailRe   = regexp.MustCompile(`^\d\.\d+$`)
	trailingColonRe = regexp.MustCompile(`\s*[:：]\s*$`)
)

// CleanTitle strips a trailing run of periods or ellipses with an optional
// page number, and a trailing colon. A number such as "2.1" ending the title
// is kept.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if loc := leaderRe.FindStringIndex(s); loc != nil {
		if i := loc[0]; i == 0 || !decimalTailRe.MatchString(s[i-1:]) {
			s = s[:i]
		}
	}
	s = trailingColonRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
