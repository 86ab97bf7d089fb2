package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/data/redisStore"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

// RedisDocumentStore keeps one JSON value per document plus a set of known ids.
type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

// GetRedisDocumentStore returns nil when Redis is unreachable.
func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	internal := redisStore.GetRedisStore(ctx, config.RedisDocumentStore)
	if internal == nil {
		return nil
	}
	return NewRedisDocumentStore(internal)
}

func NewRedisDocumentStore(internal *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  internal,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func documentKey(id string) string {
	return config.RedisDocumentKeyPrefix + id
}

func (s *RedisDocumentStore) Put(ctx context.Context, id string, doc documentModel.Document) error {
	log := s.logger.WithTrace(ctx).With("documentId", id)
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	err = s.store.SetIndexed(ctx, documentKey(id), data, config.RedisDocumentStoreTTL, config.RedisDocumentIndexKey, id)
	if err != nil {
		log.Error("saving document failed", "error", err)
		return err
	}
	log.Debug("saved document to Redis", "status", doc.Status)
	return nil
}

func (s *RedisDocumentStore) Get(ctx context.Context, id string) (documentModel.Document, error) {
	var doc documentModel.Document
	val, err := s.store.Get(ctx, documentKey(id))
	if s.store.IsNil(err) {
		return doc, documentModel.ErrNotFound
	} else if err != nil {
		return doc, err
	}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return doc, fmt.Errorf("decoding document %s: %w", id, err)
	}
	if doc.SchemaVersion > documentModel.SchemaVersion {
		return doc, fmt.Errorf("document %s has schema version %d, newer than %d", id, doc.SchemaVersion, documentModel.SchemaVersion)
	}
	return doc, nil
}

// List drops index entries whose document has expired.
func (s *RedisDocumentStore) List(ctx context.Context) ([]documentModel.Document, error) {
	ids, err := s.store.SetMembers(ctx, config.RedisDocumentIndexKey)
	if err != nil {
		return nil, err
	}
	out := make([]documentModel.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Get(ctx, id)
		if errors.Is(err, documentModel.ErrNotFound) {
			if remErr := s.store.SetRemove(ctx, config.RedisDocumentIndexKey, id); remErr != nil {
				s.logger.WithTrace(ctx).Warn("pruning index failed", "documentId", id, "error", remErr)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	sortDocuments(out)
	return out, nil
}
