package docstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/complidocs/complidocs/internal/docstore"
	"github.com/complidocs/complidocs/internal/testutil"
)

// TestPostgresStore exercises the durable backend against a real
// pgvector-enabled PostgreSQL instance. One container serves all
// subtests; each subtest uses its own owner to stay isolated.
func TestPostgresStore(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := docstore.NewPostgres(testDB.Pool, testutil.DiscardLogger())

	newDoc := func(owner string) docstore.Document {
		return docstore.Document{
			ID:          uuid.New(),
			OwnerID:     owner,
			Filename:    "deviation-report.pdf",
			FileType:    docstore.FileTypePDF,
			SizeBytes:   4096,
			TextPreview: "Deviations discovered during review are documented",
			Category:    "quality",
			Tags:        []string{"gmp"},
			CreatedAt:   time.Now().UTC(),
		}
	}

	embedded := func(docID uuid.UUID, index int, text string, vec []float32) docstore.Chunk {
		return docstore.Chunk{
			ID:             docstore.ChunkID(docID, index),
			DocumentID:     docID,
			Index:          index,
			Text:           text,
			WordCount:      len(text) / 5,
			CharacterCount: len(text),
			Embedding:      vec,
		}
	}

	vec := func(seed float32) []float32 {
		v := make([]float32, 768)
		v[0] = seed
		v[1] = 1
		return v
	}

	t.Run("put and get round-trip", func(t *testing.T) {
		doc := newDoc("pg-owner-1")
		chunks := []docstore.Chunk{
			embedded(doc.ID, 0, "batch record review", vec(1)),
			embedded(doc.ID, 1, "deviation investigation", nil), // un-embedded
		}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, doc.OwnerID, doc.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Filename != doc.Filename || got.Category != doc.Category {
			t.Errorf("Get = %+v, want %+v", got, doc)
		}
		if len(got.Tags) != 1 || got.Tags[0] != "gmp" {
			t.Errorf("Tags = %v", got.Tags)
		}
	})

	t.Run("tagless document round-trip", func(t *testing.T) {
		// Tags stays nil when the upload carries none; the tags column is
		// NOT NULL, so the store must write an empty array instead.
		doc := newDoc("pg-owner-tagless")
		doc.Tags = nil
		chunks := []docstore.Chunk{embedded(doc.ID, 0, "annual product review", vec(3))}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put with nil tags: %v", err)
		}

		got, err := store.Get(ctx, doc.OwnerID, doc.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got.Tags) != 0 {
			t.Errorf("Tags = %v, want empty", got.Tags)
		}
	})

	t.Run("tenant isolation", func(t *testing.T) {
		doc := newDoc("pg-owner-2")
		if err := store.Put(ctx, doc, nil); err != nil {
			t.Fatalf("Put: %v", err)
		}

		if _, err := store.Get(ctx, "pg-intruder", doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("cross-tenant Get: err = %v, want ErrNotFound", err)
		}
		if _, err := store.Delete(ctx, "pg-intruder", doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("cross-tenant Delete: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("delete cascades to chunks", func(t *testing.T) {
		doc := newDoc("pg-owner-3")
		chunks := []docstore.Chunk{embedded(doc.ID, 0, "cleaning validation", vec(2))}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		if _, err := store.Delete(ctx, doc.OwnerID, doc.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}

		var count int
		err := testDB.Pool.QueryRow(ctx,
			"SELECT COUNT(*) FROM chunks WHERE document_id = $1", doc.ID).Scan(&count)
		if err != nil {
			t.Fatalf("count chunks: %v", err)
		}
		if count != 0 {
			t.Errorf("%d chunks survived delete", count)
		}
	})

	t.Run("vector candidates ranked by distance", func(t *testing.T) {
		doc := newDoc("pg-owner-4")
		chunks := []docstore.Chunk{
			embedded(doc.ID, 0, "far chunk", vec(-5)),
			embedded(doc.ID, 1, "near chunk", vec(5)),
		}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		cands, err := store.Candidates(ctx, doc.OwnerID, docstore.CandidateQuery{
			Embedding: vec(5),
			Text:      "chunk",
		})
		if err != nil {
			t.Fatalf("Candidates: %v", err)
		}
		if len(cands) != 2 {
			t.Fatalf("candidates = %d, want 2", len(cands))
		}
		if cands[0].Chunk.Text != "near chunk" {
			t.Errorf("closest candidate = %q, want \"near chunk\"", cands[0].Chunk.Text)
		}
		if cands[0].Chunk.Embedding == nil {
			t.Error("candidate embedding not returned")
		}
	})

	t.Run("text candidates via full-text search", func(t *testing.T) {
		doc := newDoc("pg-owner-5")
		chunks := []docstore.Chunk{
			embedded(doc.ID, 0, "stability studies follow the approved protocol", nil),
			embedded(doc.ID, 1, "operator training records", nil),
		}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		cands, err := store.Candidates(ctx, doc.OwnerID, docstore.CandidateQuery{
			Text: "stability protocol",
		})
		if err != nil {
			t.Fatalf("Candidates: %v", err)
		}
		if len(cands) != 1 || cands[0].Chunk.Index != 0 {
			t.Fatalf("full-text candidates = %+v, want only chunk 0", cands)
		}
	})

	t.Run("text candidates fall back to recent scan", func(t *testing.T) {
		doc := newDoc("pg-owner-6")
		chunks := []docstore.Chunk{embedded(doc.ID, 0, "annual product quality review", nil)}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		// All stopwords: no full-text lexemes, so the bounded recent scan
		// must still surface the owner's chunks.
		cands, err := store.Candidates(ctx, doc.OwnerID, docstore.CandidateQuery{
			Text: "the of and",
		})
		if err != nil {
			t.Fatalf("Candidates: %v", err)
		}
		if len(cands) == 0 {
			t.Fatal("fallback scan returned no candidates")
		}
	})

	t.Run("document filter restricts candidates", func(t *testing.T) {
		owner := "pg-owner-7"
		a := newDoc(owner)
		b := newDoc(owner)
		if err := store.Put(ctx, a, []docstore.Chunk{embedded(a.ID, 0, "equipment qualification schedule", nil)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Put(ctx, b, []docstore.Chunk{embedded(b.ID, 0, "equipment calibration schedule", nil)}); err != nil {
			t.Fatalf("Put: %v", err)
		}

		cands, err := store.Candidates(ctx, owner, docstore.CandidateQuery{
			Text:        "equipment schedule",
			DocumentIDs: []uuid.UUID{a.ID},
		})
		if err != nil {
			t.Fatalf("Candidates: %v", err)
		}
		for _, c := range cands {
			if c.Document.ID != a.ID {
				t.Errorf("candidate from unfiltered document %s", c.Document.ID)
			}
		}
		if len(cands) != 1 {
			t.Errorf("filtered candidates = %d, want 1", len(cands))
		}
	})

	t.Run("stats aggregate per owner", func(t *testing.T) {
		owner := "pg-owner-8"
		doc := newDoc(owner)
		doc.SizeBytes = 1000
		chunks := []docstore.Chunk{
			embedded(doc.ID, 0, "a", vec(1)),
			embedded(doc.ID, 1, "b", nil),
		}
		if err := store.Put(ctx, doc, chunks); err != nil {
			t.Fatalf("Put: %v", err)
		}

		st, err := store.Stats(ctx, owner)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.DocumentCount != 1 || st.ChunkCount != 2 || st.TotalSizeBytes != 1000 {
			t.Errorf("Stats = %+v", st)
		}
	})

	t.Run("failed put leaves nothing behind", func(t *testing.T) {
		doc := newDoc("pg-owner-10")
		// Duplicate chunk index violates UNIQUE(document_id, chunk_index)
		// and must roll back the document row too.
		chunks := []docstore.Chunk{
			embedded(doc.ID, 0, "first", nil),
			{ID: docstore.ChunkID(doc.ID, 0) + "-dup", DocumentID: doc.ID, Index: 0, Text: "dup"},
		}
		if err := store.Put(ctx, doc, chunks); err == nil {
			t.Fatal("Put with duplicate chunk index succeeded")
		}

		if _, err := store.Get(ctx, doc.OwnerID, doc.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("document visible after failed Put: err = %v", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		owner := "pg-owner-9"
		older := newDoc(owner)
		older.CreatedAt = time.Now().UTC().Add(-time.Hour)
		newer := newDoc(owner)

		if err := store.Put(ctx, older, nil); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Put(ctx, newer, nil); err != nil {
			t.Fatalf("Put: %v", err)
		}

		docs, err := store.List(ctx, owner)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(docs) != 2 || docs[0].ID != newer.ID {
			t.Errorf("List order wrong: %+v", docs)
		}
	})
}
