package classify

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// MaxRulesFileSize caps the size of a rules file read by LoadRules.
var MaxRulesFileSize = 1 << 20

var (
	ErrEmptyRules    = errors.New("classify: empty rules file")
	ErrRulesTooLarge = errors.New("classify: rules file exceeds maximum size")
)

// Rules holds the tunable patterns behind line classification. The zero
// value is not useful; start from DefaultRules.
type Rules struct {
	// Trimmed lines longer than this many characters are never headings.
	MaxHeadingLength int `yaml:"max_heading_length"`

	// Whole-line keywords for depth 1, matched case-insensitively. A keyword
	// may be followed by a short label ("Appendix A") and by a colon and title.
	MajorKeywords []string `yaml:"major_keywords"`
	// Keywords that need a number after them to be depth 1 ("Chapter 3").
	NumberedMajorKeywords []string `yaml:"numbered_major_keywords"`
	// Extra depth-1 regular expressions, matched against the trimmed line.
	MajorPatterns []string `yaml:"major_patterns"`

	// Keywords followed by a number that give depth 2 ("Section 4").
	SubSectionKeywords []string `yaml:"sub_section_keywords"`
	// Keywords followed by a number that give depth 3 ("Step 2").
	StepKeywords []string `yaml:"step_keywords"`
	// Leading glyphs that mark a depth 3 heading.
	SecondaryBullets []string `yaml:"secondary_bullets"`

	// Leading glyphs that mark an unordered list item.
	ListBullets []string `yaml:"list_bullets"`
	// Glyph written in place of any list bullet.
	CanonicalBullet string `yaml:"canonical_bullet"`

	// Repeated depth times to open a heading line.
	HeadingMarker string `yaml:"heading_marker"`
	// Emitted before every depth 1 heading except the first heading.
	PageBreak string `yaml:"page_break"`
	// Depth of a single-component outline number ("1.").
	OutlineBaseDepth int `yaml:"outline_base_depth"`

	// Lines naming an in-document table of contents.
	TOCTitles []string `yaml:"toc_titles"`
	// Consecutive blank lines that end a table of contents.
	TOCEndBlankLines int `yaml:"toc_end_blank_lines"`

	SubHeadingFallback Fallback `yaml:"sub_heading_fallback"`
}

// Fallback treats a short line followed by a long one as a depth 3 heading.
type Fallback struct {
	Enabled      bool `yaml:"enabled"`
	MaxChars     int  `yaml:"max_chars"`
	MinNextChars int  `yaml:"min_next_chars"`
}

func DefaultRules() Rules {
	return Rules{
		MaxHeadingLength: 45,
		MajorKeywords: []string{
			"Introduction", "Preface", "Foreword", "Prologue", "Overview",
			"Appendix", "Conclusion", "Conclusions", "Summary", "Epilogue",
			"References", "Bibliography", "Glossary",
			"導論", "前言", "序言", "附錄", "結語", "總結", "結論",
		},
		NumberedMajorKeywords: []string{"Chapter", "Part", "Unit", "Module", "Lesson"},
		MajorPatterns:         []string{`^第[一二三四五六七八九十百零〇\d]+[章篇]`},
		SubSectionKeywords:    []string{"Section"},
		StepKeywords:          []string{"Step"},
		SecondaryBullets:      []string{"■", "◆", "▶", "►", "❖"},
		ListBullets:           []string{"•", "●", "○", "◦", "▪", "▫", "-", "*", "·"},
		CanonicalBullet:       "-",
		HeadingMarker:         "#",
		PageBreak:             "<!-- pagebreak -->",
		OutlineBaseDepth:      1,
		TOCTitles:             []string{"目錄", "Contents", "Table of Contents"},
		TOCEndBlankLines:      2,
		SubHeadingFallback: Fallback{
			MaxChars:     30,
			MinNextChars: 30,
		},
	}
}

// LoadRules reads a YAML rules file over DefaultRules. Keys present in the
// file replace the default wholesale; unknown keys are an error.
func LoadRules(path string) (Rules, error) {
	r := DefaultRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read rules: %w", err)
	}
	if err := unmarshalRules(data, &r); err != nil {
		return DefaultRules(), fmt.Errorf("parse rules %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return DefaultRules(), fmt.Errorf("rules %s: %w", path, err)
	}
	return r, nil
}

func unmarshalRules(data []byte, r *Rules) error {
	if len(data) == 0 {
		return ErrEmptyRules
	}
	if len(data) > MaxRulesFileSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrRulesTooLarge, len(data), MaxRulesFileSize)
	}
	return yaml.UnmarshalWithOptions(data, r, yaml.Strict())
}

func (r Rules) Validate() error {
	switch {
	case r.MaxHeadingLength <= 0:
		return errors.New("max_heading_length must be positive")
	case r.HeadingMarker == "":
		return errors.New("heading_marker is required")
	case r.CanonicalBullet == "":
		return errors.New("canonical_bullet is required")
	case r.OutlineBaseDepth < 0:
		return errors.New("outline_base_depth must not be negative")
	case r.TOCEndBlankLines <= 0:
		return errors.New("toc_end_blank_lines must be positive")
	}
	if f := r.SubHeadingFallback; f.Enabled && (f.MaxChars <= 0 || f.MinNextChars <= 0) {
		return errors.New("sub_heading_fallback limits must be positive")
	}
	return nil
}
