// Package convert runs the full structural inference pipeline over one
// document's text.
package convert

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/coursemd/internal/chunker"
	"github.com/dgallion1/coursemd/internal/classify"
	"github.com/dgallion1/coursemd/internal/document"
	"github.com/dgallion1/coursemd/internal/section"
)

// Normalizer rebuilds the text of one table candidate chunk.
// *normalize.Adapter is the production implementation.
type Normalizer interface {
	Normalize(ctx context.Context, chunkText string) (string, error)
}

// Observer is told when each normalizable chunk settles. ChunkDone may be
// called from several goroutines at once.
type Observer interface {
	ChunkDone(index int, normalized bool)
}

type Options struct {
	// MaxConcurrent bounds in-flight normalization calls per document.
	MaxConcurrent int
	// Window bounds the TOC heuristic scan. Zero uses section.DefaultWindow.
	Window int
}

// Report describes what one Run did.
type Report struct {
	Path            section.Path  `json:"extraction_path"`
	Excised         int           `json:"excised_lines"`
	Chunks          int           `json:"chunks"`
	TableCandidates int           `json:"table_candidates"`
	Normalized      int           `json:"normalized"`
	Fallbacks       int           `json:"fallbacks"`
	Skipped         int           `json:"skipped"`
	Headings        int           `json:"headings"`
	ListItems       int           `json:"list_items"`
	PageBreaks      int           `json:"page_breaks"`
	Duration        time.Duration `json:"duration_ns"`
}

type Output struct {
	Markdown string
	Report   Report
}

// Pipeline is safe for concurrent use; each Run keeps its own state.
type Pipeline struct {
	extractor     section.Extractor
	classifier    *classify.Classifier
	normalizer    Normalizer
	maxConcurrent int
	log           *slog.Logger
}

// New builds a Pipeline. A nil normalizer leaves table candidates as written.
func New(cls *classify.Classifier, n Normalizer, opts Options, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Pipeline{
		extractor: section.Extractor{
			Window:  opts.Window,
			IsMajor: cls.IsMajorSection,
		},
		classifier:    cls,
		normalizer:    n,
		maxConcurrent: opts.MaxConcurrent,
		log:           log,
	}
}

// Run converts text to Markdown. It never fails: a chunk whose normalization
// is exhausted keeps its original lines.
func (p *Pipeline) Run(ctx context.Context, text string) Output {
	return p.RunObserved(ctx, text, nil)
}

// RunObserved is Run with per-chunk progress reported to obs.
func (p *Pipeline) RunObserved(ctx context.Context, text string, obs Observer) Output {
	start := time.Now()
	var rep Report

	// Phase 1: Extract main content
	ex := p.extractor.Extract(document.SplitLines(text))
	rep.Path, rep.Excised = ex.Path, ex.Excised

	// Phase 2: Segment
	chunks := chunker.Segment(ex.Lines)
	st := chunker.Summarize(chunks)
	rep.Chunks, rep.TableCandidates = st.Chunks, st.TableCandidates

	// Phase 3: Normalize table candidates, reassembling in chunk order
	p.normalize(ctx, chunks, obs, &rep)

	// Phase 4: Classify and clean up
	lines, counts := p.classifier.Annotate(document.Lines(chunks))
	rep.Headings, rep.ListItems, rep.PageBreaks = counts.Headings, counts.ListItems, counts.PageBreaks
	md := classify.CollapseBlankLines(strings.Join(lines, "\n"))

	rep.Duration = time.Since(start)
	p.log.Info("converted document",
		"path", rep.Path,
		"chunks", rep.Chunks,
		"tables", rep.TableCandidates,
		"normalized", rep.Normalized,
		"fallbacks", rep.Fallbacks,
		"headings", rep.Headings,
		"duration", rep.Duration,
	)
	return Output{Markdown: md, Report: rep}
}

// normalize replaces the lines of every normalizable chunk with the service
// output. Calls run with bounded concurrency; each result is written to its
// chunk's slot so completion order does not matter.
func (p *Pipeline) normalize(ctx context.Context, chunks []document.Chunk, obs Observer, rep *Report) {
	if p.normalizer == nil {
		for _, c := range chunks {
			if c.Normalizable() {
				rep.Skipped++
			}
		}
		return
	}

	results := make([]*string, len(chunks))
	sem := make(chan struct{}, p.maxConcurrent)
	var wg sync.WaitGroup

	for i, c := range chunks {
		if !c.Normalizable() {
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, c document.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			out, err := p.normalizer.Normalize(ctx, c.Text())
			if err != nil {
				p.log.Warn("table normalization exhausted, keeping original",
					"chunk", c.Index, "lines", len(c.Lines), "error", err)
			} else {
				results[i] = &out
			}
			if obs != nil {
				obs.ChunkDone(c.Index, err == nil)
			}
		}(i, c)
	}
	wg.Wait()

	for i, c := range chunks {
		if !c.Normalizable() {
			continue
		}
		if results[i] == nil {
			rep.Fallbacks++
			continue
		}
		chunks[i].Lines = document.SplitLines(*results[i])
		rep.Normalized++
	}
}
