package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/coursemd/internal/classify"
	"github.com/dgallion1/coursemd/internal/config"
	"github.com/dgallion1/coursemd/internal/convert"
	"github.com/dgallion1/coursemd/internal/llm"
	"github.com/dgallion1/coursemd/internal/normalize"
	"github.com/dgallion1/coursemd/internal/parser"
	"github.com/dgallion1/coursemd/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	docs    map[string]*store.Document
	saveErr error
	findErr error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*store.Document{}}
}

func (m *memStore) Save(_ context.Context, doc *store.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memStore) FindByHash(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return "", m.findErr
	}
	for id, d := range m.docs {
		if d.ContentHash == hash {
			return id, nil
		}
	}
	return "", store.ErrNotFound
}

func (m *memStore) get(id string) *store.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestPipeline(t *testing.T, n convert.Normalizer) *convert.Pipeline {
	t.Helper()
	cls, err := classify.New(classify.DefaultRules())
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return convert.New(cls, n, convert.Options{MaxConcurrent: 2}, nil)
}

func newTestWorker(t *testing.T, docs DocumentStore) *Worker {
	t.Helper()
	return NewWorker(newTestPipeline(t, nil), docs, testLogger(), parser.Options{})
}

const course = "Introduction\nThis course covers basics.\nChapter 1\n• first point\n• second point\n"

func TestWorker_TextJobCompletes(t *testing.T) {
	docs := newMemStore()
	w := newTestWorker(t, docs)
	job := NewTextJob("Course", course, false)

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	doc := docs.get(job.DocID)
	if doc == nil {
		t.Fatal("expected document to be stored")
	}
	if !strings.Contains(doc.Markdown, "# Introduction") || !strings.Contains(doc.Markdown, "- first point") {
		t.Errorf("unexpected markdown:\n%s", doc.Markdown)
	}
	if !strings.Contains(doc.HTML, `<h1 id="section-1">Introduction</h1>`) {
		t.Errorf("expected anchored heading in HTML, got:\n%s", doc.HTML)
	}
	if doc.Title != "Course" || doc.ContentHash != ContentHashHex([]byte(course)) {
		t.Errorf("unexpected document metadata %+v", doc)
	}
	var rep convert.Report
	if err := json.Unmarshal(doc.Report, &rep); err != nil {
		t.Fatalf("expected JSON report: %v", err)
	}
	if rep.Headings != 2 {
		t.Errorf("expected 2 headings in report, got %d", rep.Headings)
	}
	if snap.Progress.Headings != 2 {
		t.Errorf("expected 2 headings in progress, got %d", snap.Progress.Headings)
	}
}

func TestWorker_FileJobParses(t *testing.T) {
	docs := newMemStore()
	w := newTestWorker(t, docs)
	job := NewJob("notes.md", "", []byte("# Overview\n\nSome text.\n"), false)

	w.Process(context.Background(), job)

	if job.Snapshot().Status != StatusCompleted {
		t.Fatalf("expected completed, got %+v", job.Snapshot())
	}
	doc := docs.get(job.DocID)
	if doc.Title != "Overview" {
		t.Errorf("expected title from first heading, got %q", doc.Title)
	}
	if job.FileData() != nil {
		t.Error("expected upload bytes to be released after parsing")
	}
}

func TestWorker_DuplicateSkipped(t *testing.T) {
	docs := newMemStore()
	w := newTestWorker(t, docs)

	first := NewTextJob("a", course, false)
	w.Process(context.Background(), first)

	second := NewTextJob("b", course, false)
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected status %q, got %q", StatusDupSkipped, snap.Status)
	}
	if snap.DuplicateOf != first.DocID {
		t.Errorf("expected duplicate of %q, got %q", first.DocID, snap.DuplicateOf)
	}
}

func TestWorker_ForceBypassesDedup(t *testing.T) {
	docs := newMemStore()
	w := newTestWorker(t, docs)

	w.Process(context.Background(), NewTextJob("a", course, false))
	forced := NewTextJob("b", course, true)
	w.Process(context.Background(), forced)

	if forced.Snapshot().Status != StatusCompleted {
		t.Errorf("expected forced job to complete, got %q", forced.Snapshot().Status)
	}
	if docs.get(forced.DocID) == nil {
		t.Error("expected forced job to store a second document")
	}
}

func TestWorker_DedupErrorProceeds(t *testing.T) {
	docs := newMemStore()
	docs.findErr = errors.New("database locked")
	w := newTestWorker(t, docs)
	job := NewTextJob("a", course, false)

	w.Process(context.Background(), job)

	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completion despite dedup error, got %q", job.Snapshot().Status)
	}
}

func TestWorker_Failures(t *testing.T) {
	tests := []struct {
		name  string
		job   *Job
		store func(*memStore)
		phase string
	}{
		{"unsupported", NewJob("slides.pptx", "", []byte("x"), false), nil, "parsing"},
		{"empty text", NewTextJob("a", "  \n\n", false), nil, "parsing"},
		{"store error", NewTextJob("a", course, false), func(m *memStore) { m.saveErr = errors.New("disk full") }, "storing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := newMemStore()
			if tt.store != nil {
				tt.store(docs)
			}
			w := newTestWorker(t, docs)
			w.Process(context.Background(), tt.job)

			snap := tt.job.Snapshot()
			if snap.Status != StatusFailed {
				t.Fatalf("expected status %q, got %q", StatusFailed, snap.Status)
			}
			if snap.Phase != tt.phase {
				t.Errorf("expected phase %q, got %q", tt.phase, snap.Phase)
			}
			if len(snap.Progress.Errors) == 0 {
				t.Error("expected an error to be recorded")
			}
		})
	}
}

func TestWorker_TableProgress(t *testing.T) {
	adapter := normalize.NewAdapter(llm.Passthrough{}, normalize.DefaultPolicy(), nil)
	docs := newMemStore()
	w := NewWorker(newTestPipeline(t, adapter), docs, testLogger(), parser.Options{})

	text := "Overview\n[TABLE_START]\n| Name | Score |\n| --- | --- |\n| Ann | 90 |\n[TABLE_END]\nDone.\n"
	job := NewTextJob("t", text, false)
	w.Process(context.Background(), job)

	p := job.Snapshot().Progress
	if p.TableCandidates != 1 || p.TablesProcessed != 1 || p.Normalized != 1 {
		t.Errorf("expected one normalized table, got %+v", p)
	}
	if doc := docs.get(job.DocID); doc == nil || !strings.Contains(doc.HTML, "<table>") {
		t.Error("expected the stored HTML to contain the table")
	}
}

func TestOrchestrator_SubmitProcessesJobs(t *testing.T) {
	docs := newMemStore()
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 10, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, newTestPipeline(t, nil), docs, testLogger())
	o.Start(context.Background())
	defer o.Stop()

	jobs := []*Job{
		NewTextJob("a", "Preface\nfirst", false),
		NewTextJob("b", "Preface\nsecond", false),
	}
	for _, j := range jobs {
		if err := o.Submit(j); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for _, j := range jobs {
		for !o.GetJob(j.ID).Snapshot().Status.Terminal() {
			if time.Now().After(deadline) {
				t.Fatalf("job %s did not finish", j.ID)
			}
			time.Sleep(5 * time.Millisecond)
		}
		if got := j.Snapshot().Status; got != StatusCompleted {
			t.Errorf("expected %q, got %q", StatusCompleted, got)
		}
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Config{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}
	o := NewOrchestrator(cfg, newTestPipeline(t, nil), newMemStore(), testLogger())
	// Not started, so nothing drains the queue.

	if err := o.Submit(NewTextJob("a", "x", false)); err != nil {
		t.Fatalf("expected first submit to succeed, got %v", err)
	}
	overflow := NewTextJob("b", "y", false)
	err := o.Submit(overflow)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if overflow.Snapshot().Status != StatusFailed {
		t.Errorf("expected overflow job to fail, got %q", overflow.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 1}, newTestPipeline(t, nil), newMemStore(), testLogger())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	if err := o.Submit(NewTextJob("a", "x", false)); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
