package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/fadehq/redact-client/internal/domain"
)

type fakeLister struct {
	documents []domain.Document
	err       error
	calls     int
}

func (l *fakeLister) ListDocuments(context.Context) ([]domain.Document, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.documents, nil
}

func doc(code, filename string) domain.Document {
	return domain.Document{Code: code, Filename: filename, UploadStatus: domain.UploadStatusUploaded}
}

func TestAddUpsertsByCode(t *testing.T) {
	registry := New(nil)

	registry.Add(doc("abc", "contract.pdf"))
	registry.Add(doc("def", "invoice.pdf"))
	registry.Add(doc("abc", "contract-v2.pdf"))

	documents := registry.List()
	if len(documents) != 2 {
		t.Fatalf("re-adding a known code must not duplicate, got %d documents", len(documents))
	}
	if documents[0].Code != "abc" || documents[0].Filename != "contract-v2.pdf" {
		t.Fatalf("upsert did not update in place: %+v", documents[0])
	}
	if documents[1].Code != "def" {
		t.Fatalf("insertion order lost: %+v", documents)
	}
}

func TestFindByCode(t *testing.T) {
	registry := New(nil)
	registry.Add(doc("abc", "contract.pdf"))

	found, err := registry.FindByCode("abc")
	if err != nil || found.Filename != "contract.pdf" {
		t.Fatalf("expected the stored document, got %+v err=%v", found, err)
	}

	if _, err := registry.FindByCode("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveFiresCascadeHook(t *testing.T) {
	registry := New(nil)
	registry.Add(doc("abc", "contract.pdf"))

	var removed []string
	registry.OnRemove(func(documentCode string) {
		removed = append(removed, documentCode)
	})

	if err := registry.Remove("abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(removed) != 1 || removed[0] != "abc" {
		t.Fatalf("cascade hook not fired for removed code, got %v", removed)
	}
	if _, err := registry.FindByCode("abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removed document still present")
	}

	if err := registry.Remove("abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing an unknown code must report ErrNotFound, got %v", err)
	}
	if len(removed) != 1 {
		t.Fatalf("cascade hook fired for a failed remove")
	}
}

func TestReloadReplacesLocalState(t *testing.T) {
	lister := &fakeLister{documents: []domain.Document{
		doc("def", "invoice.pdf"),
		doc("ghi", "report.pdf"),
	}}
	registry := New(lister)
	registry.Add(doc("abc", "stale.pdf"))

	if err := registry.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	documents := registry.List()
	if len(documents) != 2 {
		t.Fatalf("expected the backend list to replace local state, got %+v", documents)
	}
	if documents[0].Code != "def" || documents[1].Code != "ghi" {
		t.Fatalf("backend ordering lost: %+v", documents)
	}
	if _, err := registry.FindByCode("abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale local entry survived reload")
	}
}

func TestReloadFailureKeepsLocalState(t *testing.T) {
	lister := &fakeLister{err: errors.New("backend down")}
	registry := New(lister)
	registry.Add(doc("abc", "contract.pdf"))

	if err := registry.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload error")
	}
	if len(registry.List()) != 1 {
		t.Fatalf("a failed reload must not clobber the local view")
	}
}
