package submit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/fadehq/redact-client/internal/domain"
	"github.com/fadehq/redact-client/internal/history"
	"github.com/fadehq/redact-client/internal/redaction"
)

type fakeBackend struct {
	mu       sync.Mutex
	nextID   int64
	failing  map[string]error
	submits  []string
	reworked []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failing: make(map[string]error)}
}

func (b *fakeBackend) SubmitJob(_ context.Context, documentCode string, _ domain.RedactionConfig) (domain.Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits = append(b.submits, documentCode)
	if err := b.failing[documentCode]; err != nil {
		return domain.Job{}, err
	}
	b.nextID++
	return domain.Job{ID: b.nextID, DocumentCode: documentCode, Status: domain.JobStatusPending}, nil
}

func (b *fakeBackend) ReprocessJob(ctx context.Context, documentCode string, config domain.RedactionConfig) (domain.Job, error) {
	b.mu.Lock()
	b.reworked = append(b.reworked, documentCode)
	b.mu.Unlock()
	return b.SubmitJob(ctx, documentCode, config)
}

type fakeWatcher struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (w *fakeWatcher) Watch(job domain.Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jobs = append(w.jobs, job)
}

func (w *fakeWatcher) watched() []domain.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]domain.Job(nil), w.jobs...)
}

func testConfig(t *testing.T) domain.RedactionConfig {
	t.Helper()
	config, err := redaction.Build(redaction.SelectAll(), redaction.GlobalOptions{})
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return config
}

func TestSubmitBatchIsolatesFailures(t *testing.T) {
	backend := newFakeBackend()
	backend.failing["doc-b"] = errors.New("document not found")
	watcher := &fakeWatcher{}
	submitter := New(backend, watcher, Config{})

	batch, err := submitter.SubmitBatch(context.Background(),
		[]string{"doc-a", "doc-b", "doc-c"}, testConfig(t))
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	if batch.Total != 3 {
		t.Fatalf("expected total 3, got %d", batch.Total)
	}
	if len(batch.Succeeded) != 2 {
		t.Fatalf("expected 2 accepted jobs, got %d", len(batch.Succeeded))
	}
	if len(batch.Failed) != 1 || batch.Failed[0].DocumentCode != "doc-b" {
		t.Fatalf("expected doc-b to fail, got %+v", batch.Failed)
	}
	if !strings.Contains(batch.Failed[0].Reason, "document not found") {
		t.Fatalf("failure must carry the backend reason, got %q", batch.Failed[0].Reason)
	}

	// Result ordering matches input ordering regardless of completion order.
	codes := make([]string, 0, len(batch.Results))
	for _, result := range batch.Results {
		codes = append(codes, result.DocumentCode)
	}
	want := []string{"doc-a", "doc-b", "doc-c"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("expected ordering %v, got %v", want, codes)
		}
	}
}

func TestSubmitBatchWatchesEveryAcceptedJob(t *testing.T) {
	backend := newFakeBackend()
	backend.failing["doc-b"] = errors.New("boom")
	watcher := &fakeWatcher{}
	submitter := New(backend, watcher, Config{})

	_, err := submitter.SubmitBatch(context.Background(),
		[]string{"doc-a", "doc-b"}, testConfig(t))
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	watched := watcher.watched()
	if len(watched) != 1 {
		t.Fatalf("expected exactly the accepted job to be watched, got %d", len(watched))
	}
	if watched[0].DocumentCode != "doc-a" || watched[0].ID == 0 {
		t.Fatalf("watched job carries the wrong identity: %+v", watched[0])
	}
	if !watched[0].Status.Outstanding() {
		t.Fatalf("a fresh job must start outstanding, got %s", watched[0].Status)
	}
}

func TestSubmitBatchRejectsEmptySelection(t *testing.T) {
	submitter := New(newFakeBackend(), &fakeWatcher{}, Config{})

	_, err := submitter.SubmitBatch(context.Background(), nil, testConfig(t))
	if !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestSubmitBatchRejectsInertConfig(t *testing.T) {
	submitter := New(newFakeBackend(), &fakeWatcher{}, Config{})

	var inert domain.RedactionConfig
	_, err := submitter.SubmitBatch(context.Background(), []string{"doc-a"}, inert)
	if err == nil {
		t.Fatalf("a config that redacts nothing must be rejected before any network call")
	}
}

func TestResubmitBatchUsesReprocessEndpoint(t *testing.T) {
	backend := newFakeBackend()
	watcher := &fakeWatcher{}
	submitter := New(backend, watcher, Config{})

	batch, err := submitter.ResubmitBatch(context.Background(), []string{"doc-a"}, testConfig(t))
	if err != nil {
		t.Fatalf("ResubmitBatch: %v", err)
	}
	if len(backend.reworked) != 1 || backend.reworked[0] != "doc-a" {
		t.Fatalf("expected reprocess endpoint, got submits=%v reprocess=%v", backend.submits, backend.reworked)
	}
	if len(batch.Succeeded) != 1 {
		t.Fatalf("expected accepted resubmission, got %+v", batch)
	}
}

func TestSubmitBatchRecordsAuditTrail(t *testing.T) {
	backend := newFakeBackend()
	backend.failing["doc-b"] = errors.New("boom")
	audit := history.NewMemoryRepository()
	submitter := New(backend, &fakeWatcher{}, Config{Audit: audit})

	_, err := submitter.SubmitBatch(context.Background(),
		[]string{"doc-a", "doc-b"}, testConfig(t))
	if err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}

	accepted, err := audit.ListByDocument(context.Background(), "doc-a")
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(accepted) != 1 || accepted[0].Event != history.EventSubmitted {
		t.Fatalf("expected one submitted event, got %+v", accepted)
	}
	if accepted[0].ConfigHash == "" || accepted[0].JobID == 0 {
		t.Fatalf("submitted event must carry config hash and job id: %+v", accepted[0])
	}

	rejected, err := audit.ListByDocument(context.Background(), "doc-b")
	if err != nil {
		t.Fatalf("ListByDocument: %v", err)
	}
	if len(rejected) != 1 || rejected[0].Event != history.EventSubmissionFailed {
		t.Fatalf("expected one failure event, got %+v", rejected)
	}
}
