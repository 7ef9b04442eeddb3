package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fadehq/redact-client/internal/cache"
	"github.com/fadehq/redact-client/internal/domain"
)

type fakeLoader struct {
	mu           sync.Mutex
	previewCalls int
	detailCalls  int
	previewErr   error
	detailErr    error
	release      chan struct{}
}

func (l *fakeLoader) PreviewURLs(_ context.Context, documentCode string, jobID int64) (domain.Preview, error) {
	l.mu.Lock()
	l.previewCalls++
	release := l.release
	err := l.previewErr
	l.mu.Unlock()
	if release != nil {
		<-release
	}
	if err != nil {
		return domain.Preview{}, err
	}
	return domain.Preview{
		OriginalURL:  "https://files/" + documentCode + "/original.pdf",
		ProcessedURL: "https://files/" + documentCode + "/processed.pdf",
	}, nil
}

func (l *fakeLoader) JobDetail(_ context.Context, jobID int64) (domain.JobDetail, error) {
	l.mu.Lock()
	l.detailCalls++
	err := l.detailErr
	l.mu.Unlock()
	if err != nil {
		return domain.JobDetail{}, err
	}
	return domain.JobDetail{
		Status: domain.JobStatusCompleted,
		SensitiveFields: []domain.SensitiveField{
			{Page: 1, Type: "email", Value: "a@b.c", Method: "black"},
		},
		TotalFields:     1,
		ProcessedFields: 1,
	}, nil
}

func (l *fakeLoader) calls() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.previewCalls, l.detailCalls
}

func completedJob(id int64, documentCode string) domain.Job {
	return domain.Job{ID: id, DocumentCode: documentCode, Status: domain.JobStatusCompleted}
}

func TestShouldReloadIsEdgeTriggered(t *testing.T) {
	cases := []struct {
		previous domain.JobStatus
		next     domain.JobStatus
		want     bool
	}{
		{domain.JobStatusPending, domain.JobStatusCompleted, true},
		{domain.JobStatusProcessing, domain.JobStatusCompleted, true},
		{domain.JobStatusCompleted, domain.JobStatusCompleted, false},
		{domain.JobStatusPending, domain.JobStatusProcessing, false},
		{domain.JobStatusProcessing, domain.JobStatusFailed, false},
		{domain.JobStatusFailed, domain.JobStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := ShouldReload(tc.previous, tc.next); got != tc.want {
			t.Errorf("ShouldReload(%s, %s) = %v, want %v", tc.previous, tc.next, got, tc.want)
		}
	}
}

func TestObserveReloadsExactlyOncePerCompletion(t *testing.T) {
	loader := &fakeLoader{}
	reconciler := New(loader, Config{})

	job := domain.Job{ID: 1, DocumentCode: "doc-a", Status: domain.JobStatusProcessing}
	reconciler.Select(context.Background(), job)

	job.Status = domain.JobStatusCompleted
	reconciler.Observe(context.Background(), job, domain.JobStatusProcessing, domain.JobStatusCompleted)

	// Repeated completed observations, as a poller racing its own stop
	// could deliver, must not trigger further loads.
	reconciler.Observe(context.Background(), job, domain.JobStatusCompleted, domain.JobStatusCompleted)
	reconciler.Observe(context.Background(), job, domain.JobStatusCompleted, domain.JobStatusCompleted)

	previews, details := loader.calls()
	if previews != 1 || details != 1 {
		t.Fatalf("expected exactly one load, got previews=%d details=%d", previews, details)
	}

	view := reconciler.View()
	if view.State != StateLoaded {
		t.Fatalf("expected loaded view, got %s (err=%v)", view.State, view.Err)
	}
	if view.Preview.ProcessedURL == "" || len(view.Detail.SensitiveFields) != 1 {
		t.Fatalf("loaded view is missing preview or detail: %+v", view)
	}
}

func TestSelectCompletedJobLoadsImmediately(t *testing.T) {
	loader := &fakeLoader{}
	reconciler := New(loader, Config{})

	reconciler.Select(context.Background(), completedJob(1, "doc-a"))

	view := reconciler.View()
	if view.State != StateLoaded {
		t.Fatalf("selecting an already-completed job must load, got %s", view.State)
	}
}

func TestObserveIgnoresUnselectedJobs(t *testing.T) {
	loader := &fakeLoader{}
	reconciler := New(loader, Config{})

	reconciler.Select(context.Background(), domain.Job{ID: 1, DocumentCode: "doc-a", Status: domain.JobStatusProcessing})
	other := completedJob(2, "doc-b")
	reconciler.Observe(context.Background(), other, domain.JobStatusProcessing, domain.JobStatusCompleted)

	previews, _ := loader.calls()
	if previews != 0 {
		t.Fatalf("transition for an unselected job triggered a load")
	}
	if view := reconciler.View(); view.JobID != 1 || view.State != StateUnresolved {
		t.Fatalf("view must keep tracking the selected job, got %+v", view)
	}
}

func TestSelectionChangeDiscardsInFlightLoad(t *testing.T) {
	release := make(chan struct{})
	loader := &fakeLoader{release: release}
	reconciler := New(loader, Config{})

	done := make(chan struct{})
	go func() {
		reconciler.Select(context.Background(), completedJob(1, "doc-a"))
		close(done)
	}()

	// Wait for the first load to be in flight, then select a different job.
	for {
		previews, _ := loader.calls()
		if previews > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	loader.mu.Lock()
	loader.release = nil
	loader.mu.Unlock()
	reconciler.Select(context.Background(), completedJob(2, "doc-b"))

	close(release)
	<-done

	view := reconciler.View()
	if view.JobID != 2 || view.DocumentCode != "doc-b" {
		t.Fatalf("stale load overwrote the newer selection: %+v", view)
	}
	if view.State != StateLoaded {
		t.Fatalf("expected the newer selection to be loaded, got %s", view.State)
	}
}

func TestFailedJobYieldsErrorView(t *testing.T) {
	loader := &fakeLoader{}
	reconciler := New(loader, Config{})

	job := domain.Job{ID: 1, DocumentCode: "doc-a", Status: domain.JobStatusProcessing}
	reconciler.Select(context.Background(), job)

	job.Status = domain.JobStatusFailed
	job.ErrorMessage = "ocr crashed"
	reconciler.Observe(context.Background(), job, domain.JobStatusProcessing, domain.JobStatusFailed)

	view := reconciler.View()
	if view.State != StateError || view.Err == nil {
		t.Fatalf("expected error view, got %+v", view)
	}
	if previews, details := loader.calls(); previews != 0 || details != 0 {
		t.Fatalf("failed job must not fetch preview resources")
	}
}

func TestLoadErrorIsRetriableViaReselect(t *testing.T) {
	loader := &fakeLoader{previewErr: errors.New("boom")}
	reconciler := New(loader, Config{})

	reconciler.Select(context.Background(), completedJob(1, "doc-a"))
	if view := reconciler.View(); view.State != StateError {
		t.Fatalf("expected error view after a failed load, got %s", view.State)
	}

	loader.mu.Lock()
	loader.previewErr = nil
	loader.mu.Unlock()

	reconciler.Select(context.Background(), completedJob(1, "doc-a"))
	if view := reconciler.View(); view.State != StateLoaded {
		t.Fatalf("re-selecting must retry the load, got %s (err=%v)", view.State, view.Err)
	}
}

func TestLoadServesFromCacheWhenWarm(t *testing.T) {
	store := cache.NewMemoryStore(cache.Config{})
	loader := &fakeLoader{}
	reconciler := New(loader, Config{Store: store})

	reconciler.Select(context.Background(), completedJob(1, "doc-a"))
	previews, _ := loader.calls()
	if previews != 1 {
		t.Fatalf("cold cache must hit the backend once, got %d", previews)
	}

	reconciler.Clear()
	reconciler.Select(context.Background(), completedJob(1, "doc-a"))

	previews, details := loader.calls()
	if previews != 1 || details != 1 {
		t.Fatalf("warm cache must not hit the backend again, got previews=%d details=%d", previews, details)
	}
	if view := reconciler.View(); view.State != StateLoaded {
		t.Fatalf("cached entry must yield a loaded view, got %s", view.State)
	}
}
