package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/coursemd/internal/convert"
	"github.com/dgallion1/coursemd/internal/document"
	"github.com/dgallion1/coursemd/internal/parser"
	"github.com/dgallion1/coursemd/internal/render"
	"github.com/dgallion1/coursemd/internal/store"
)

// DocumentStore is the persistence the worker needs. *store.Store
// satisfies it.
type DocumentStore interface {
	Save(ctx context.Context, doc *store.Document) error
	FindByHash(ctx context.Context, hash string) (string, error)
}

// Worker processes a single document job.
type Worker struct {
	conv      *convert.Pipeline
	docs      DocumentStore
	log       *slog.Logger
	parseOpts parser.Options
}

func NewWorker(conv *convert.Pipeline, docs DocumentStore, log *slog.Logger, parseOpts parser.Options) *Worker {
	return &Worker{
		conv:      conv,
		docs:      docs,
		log:       log,
		parseOpts: parseOpts,
	}
}

// Process runs the full conversion pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.parse(job)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.releaseInput()
	if job.Title != "" {
		doc.Title = job.Title
	}
	if strings.TrimSpace(doc.Text) == "" {
		log.Warn("no text extracted")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Compute content hash from the parsed text.
	job.SetContentHash(ContentHashHex([]byte(doc.Text)))

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, err := w.docs.FindByHash(ctx, job.ContentHash)
		switch {
		case err == nil:
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.MarkDuplicate(existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("dedup check failed, proceeding", "error", err)
		}
	}

	// Phase 2: Convert
	job.SetStatus(StatusConverting, "converting")
	out := w.conv.RunObserved(ctx, doc.Text, job)
	rep := out.Report
	job.SetChunkCounts(rep.Chunks, rep.TableCandidates)
	job.SetOutcome(rep.Normalized, rep.Fallbacks, rep.Headings)
	if err := ctx.Err(); err != nil {
		log.Warn("conversion cancelled", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "converting")
		return
	}

	// Phase 3: Render
	job.SetStatus(StatusRendering, "rendering")
	page, err := render.HTML(out.Markdown, doc.Title)
	if err != nil {
		log.Error("render failed", "error", err)
		job.AddError(fmt.Sprintf("render: %s", err))
		job.SetStatus(StatusFailed, "rendering")
		return
	}

	// Phase 4: Store
	job.SetStatus(StatusStoring, "storing")
	report, err := json.Marshal(rep)
	if err != nil {
		job.AddError(fmt.Sprintf("report: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}
	err = w.docs.Save(ctx, &store.Document{
		ID:          job.DocID,
		Title:       doc.Title,
		Filename:    job.Filename,
		ContentHash: job.ContentHash,
		Markdown:    out.Markdown,
		HTML:        page,
		Report:      report,
		CreatedAt:   job.CreatedAt,
	})
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	log.Info("job complete", "chunks", rep.Chunks, "normalized", rep.Normalized, "fallbacks", rep.Fallbacks)
	job.SetStatus(StatusCompleted, "done")
}

// parse returns the job's text, running the file parser unless the text was
// submitted directly.
func (w *Worker) parse(job *Job) (*document.Document, error) {
	job.mu.Lock()
	text, data := job.text, job.fileData
	job.mu.Unlock()

	if text != nil {
		return &document.Document{Title: job.Title, Text: *text}, nil
	}
	p, err := parser.ForFile(job.Filename, w.parseOpts)
	if err != nil {
		return nil, err
	}
	return p.Parse(bytes.NewReader(data), job.Filename)
}
