package store

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

var inMemDocLogger = logger_i.NewLogger("InMem DocumentStore")

// InMemoryDocumentStore copies documents on the way in and out so callers never share
// page maps with the store.
type InMemoryDocumentStore struct {
	docMutex *sync.RWMutex
	docMap   map[string]documentModel.Document
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		docMutex: new(sync.RWMutex),
		docMap:   make(map[string]documentModel.Document),
	}
}

func (store *InMemoryDocumentStore) Put(ctx context.Context, id string, doc documentModel.Document) error {
	store.docMutex.Lock()
	defer store.docMutex.Unlock()
	store.docMap[id] = doc.Clone()
	inMemDocLogger.Debug("saved document", "documentId", id, "status", doc.Status)
	return nil
}

func (store *InMemoryDocumentStore) Get(ctx context.Context, id string) (documentModel.Document, error) {
	store.docMutex.RLock()
	defer store.docMutex.RUnlock()
	doc, found := store.docMap[id]
	if !found {
		return documentModel.Document{}, documentModel.ErrNotFound
	}
	return doc.Clone(), nil
}

func (store *InMemoryDocumentStore) List(ctx context.Context) ([]documentModel.Document, error) {
	store.docMutex.RLock()
	out := make([]documentModel.Document, 0, len(store.docMap))
	for _, doc := range store.docMap {
		out = append(out, doc.Clone())
	}
	store.docMutex.RUnlock()
	sortDocuments(out)
	return out, nil
}

// sortDocuments orders by upload time, then id.
func sortDocuments(docs []documentModel.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.Before(docs[j].UploadedAt)
		}
		return docs[i].Id < docs[j].Id
	})
}
