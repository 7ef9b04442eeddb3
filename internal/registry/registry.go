// Package registry holds the client-side view of uploaded documents.
// Persistence is delegated to the backend; the registry reloads from the
// document-list endpoint after mutating operations.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fadehq/redact-client/internal/domain"
)

var ErrNotFound = errors.New("document not found")

// Lister is the backend document-list endpoint.
type Lister interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// Registry exclusively owns Document entities, keyed by server-assigned
// code. Jobs reference documents by code only; removing a document must
// also invalidate their polling, which runs through the remove hook.
type Registry struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	order    []string
	lister   Lister
	onRemove func(documentCode string)
}

func New(lister Lister) *Registry {
	return &Registry{
		docs:   make(map[string]domain.Document),
		lister: lister,
	}
}

// OnRemove registers the cascade hook invoked for every removed document
// code. The poller's UnwatchDocument goes here.
func (r *Registry) OnRemove(hook func(documentCode string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = hook
}

// Add upserts a document. Codes are the identity key: adding an existing
// code updates it in place, it never duplicates the entry.
func (r *Registry) Add(doc domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.docs[doc.Code]; !exists {
		r.order = append(r.order, doc.Code)
	}
	r.docs[doc.Code] = doc
}

// Remove deletes a document from the registry and fires the cascade hook.
func (r *Registry) Remove(documentCode string) error {
	r.mu.Lock()
	if _, exists := r.docs[documentCode]; !exists {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.docs, documentCode)
	for i, code := range r.order {
		if code == documentCode {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	hook := r.onRemove
	r.mu.Unlock()

	if hook != nil {
		hook(documentCode)
	}
	return nil
}

// List returns the documents in insertion order.
func (r *Registry) List() []domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()

	documents := make([]domain.Document, 0, len(r.order))
	for _, code := range r.order {
		documents = append(documents, r.docs[code])
	}
	return documents
}

// FindByCode looks a document up by its identity key.
func (r *Registry) FindByCode(documentCode string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.docs[documentCode]
	if !exists {
		return domain.Document{}, ErrNotFound
	}
	return doc, nil
}

// Reload replaces the registry contents with the authoritative backend
// list. Called after mutating operations and on view re-entry.
func (r *Registry) Reload(ctx context.Context) error {
	if r.lister == nil {
		return nil
	}
	documents, err := r.lister.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("reload documents: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]domain.Document, len(documents))
	r.order = r.order[:0]
	for _, doc := range documents {
		if _, exists := r.docs[doc.Code]; !exists {
			r.order = append(r.order, doc.Code)
		}
		r.docs[doc.Code] = doc
	}
	return nil
}
