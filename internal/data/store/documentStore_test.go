package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/data/redisStore"
	"github.com/akolanti/FinDocAPI/internal/data/store"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
)

func sampleDocument(id string, uploaded time.Time) documentModel.Document {
	text := "Held ISIN US0378331005 valued at $1,234.56 on 01/02/2024"
	doc := documentModel.NewDocument(id, "statement.pdf", documentModel.ProcessOptions{Language: "heb+eng", DPI: 300})
	doc.UploadedAt = uploaded
	doc.UpdatedAt = uploaded
	doc.Status = documentModel.StatusComplete
	doc.PageCount = 3
	doc.Pages[1] = documentModel.Page{Text: &text, Tables: []documentModel.Table{}, Method: documentModel.MethodNative}
	doc.Pages[2] = documentModel.Page{
		Text:   nil,
		Tables: []documentModel.Table{},
		Method: documentModel.MethodNone,
		Error:  "native: extraction failure; ocr: extraction failure",
	}
	doc.Pages[3] = documentModel.Page{
		Text: &text,
		Tables: []documentModel.Table{
			{Coordinates: [4]float64{50, 672, 240, 710}, Confidence: 0.925, Grid: [][]string{{"ISIN", "Value"}, {"US0378331005"}}},
			{Coordinates: [4]float64{1, 2, 3, 4}, Confidence: 0.8, Grid: [][]string{}, GridError: "no text inside region"},
		},
		Method: documentModel.MethodOCR,
	}
	doc.FinancialData = documentModel.FinancialData{
		ISINs:          []string{"US0378331005"},
		Dates:          []string{"01/02/2024"},
		Amounts:        []string{"$1,234.56"},
		AmbiguousDates: []string{"01/02/2024"},
		Entities: []documentModel.Entity{
			{Kind: documentModel.EntityISIN, Value: "US0378331005", Page: 1},
		},
	}
	return doc
}

func newRedisDocumentStore(t *testing.T) (*store.RedisDocumentStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return store.NewRedisDocumentStore(redisStore.NewStoreFromClient(client)), mr
}

func TestDocumentStores_RoundTrip(t *testing.T) {
	redisDocs, _ := newRedisDocumentStore(t)
	stores := map[string]documentModel.DocumentStore{
		"in-memory": store.InitInMemoryDocumentStore(),
		"redis":     redisDocs,
	}
	uploaded := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

	for name, docs := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleDocument("doc-1", uploaded)

			require.NoError(t, docs.Put(ctx, want.Id, want))
			got, err := docs.Get(ctx, want.Id)

			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDocumentStores_NotFoundAndList(t *testing.T) {
	redisDocs, _ := newRedisDocumentStore(t)
	stores := map[string]documentModel.DocumentStore{
		"in-memory": store.InitInMemoryDocumentStore(),
		"redis":     redisDocs,
	}
	base := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

	for name, docs := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := docs.Get(ctx, "ghost")
			assert.ErrorIs(t, err, documentModel.ErrNotFound)

			require.NoError(t, docs.Put(ctx, "b", sampleDocument("b", base.Add(time.Hour))))
			require.NoError(t, docs.Put(ctx, "a", sampleDocument("a", base.Add(time.Hour))))
			require.NoError(t, docs.Put(ctx, "c", sampleDocument("c", base)))
			// overwrite keeps a single entry
			require.NoError(t, docs.Put(ctx, "c", sampleDocument("c", base)))

			listed, err := docs.List(ctx)
			require.NoError(t, err)
			ids := make([]string, 0, len(listed))
			for _, d := range listed {
				ids = append(ids, d.Id)
			}
			assert.Equal(t, []string{"c", "a", "b"}, ids)
		})
	}
}

func TestInMemoryDocumentStore_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	docs := store.InitInMemoryDocumentStore()
	doc := sampleDocument("doc-1", time.Now().UTC())
	require.NoError(t, docs.Put(ctx, doc.Id, doc))

	doc.Pages[4] = documentModel.Page{Method: documentModel.MethodNone}
	*doc.Pages[1].Text = "mutated"

	got, err := docs.Get(ctx, doc.Id)
	require.NoError(t, err)
	assert.Len(t, got.Pages, 3)
	assert.Contains(t, *got.Pages[1].Text, "US0378331005")
}

func TestRedisDocumentStore_SchemaOnTheWire(t *testing.T) {
	docs, mr := newRedisDocumentStore(t)
	ctx := context.Background()
	doc := sampleDocument("doc-9", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, docs.Put(ctx, doc.Id, doc))

	raw, err := mr.Get(config.RedisDocumentKeyPrefix + doc.Id)
	require.NoError(t, err)
	assert.Equal(t, config.RedisDocumentStoreTTL, mr.TTL(config.RedisDocumentKeyPrefix+doc.Id))

	var wire map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &wire))
	assert.Equal(t, "doc-9", wire["document_id"])
	assert.Equal(t, "complete", wire["status"])

	pages := wire["pages"].(map[string]any)
	assert.Nil(t, pages["2"].(map[string]any)["text"])
	assert.Equal(t, "ocr", pages["3"].(map[string]any)["method"])

	financial := wire["financial_data"].(map[string]any)
	assert.ElementsMatch(t, []any{"US0378331005"}, financial["isins"])
}

func TestRedisDocumentStore_ListPrunesExpired(t *testing.T) {
	docs, mr := newRedisDocumentStore(t)
	ctx := context.Background()
	require.NoError(t, docs.Put(ctx, "keep", sampleDocument("keep", time.Now().UTC())))
	require.NoError(t, docs.Put(ctx, "gone", sampleDocument("gone", time.Now().UTC())))
	mr.Del(config.RedisDocumentKeyPrefix + "gone")

	listed, err := docs.List(ctx)

	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "keep", listed[0].Id)
	members, err := mr.Members(config.RedisDocumentIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, members)
}
