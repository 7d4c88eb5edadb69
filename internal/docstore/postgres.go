package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// defaultCandidateLimit bounds candidate queries when the caller does not
// set one, preventing unbounded scans on large tenants.
const defaultCandidateLimit = 200

// Postgres is the durable Store backed by PostgreSQL with the pgvector
// extension. Schema lives in db/migrations: documents and chunks tables,
// a cascading FK from chunks to documents, an HNSW index over embeddings
// and a GIN full-text index over chunk text.
//
// Postgres is safe for concurrent use by multiple goroutines.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a Postgres store on the given pool. The pool must
// have pgvector types registered (see database.NewPool) and the schema
// migrated (see db.Migrate).
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// Put persists the document header and all chunks in one transaction.
// A failure at any point rolls back everything; no document row without
// its full chunk sequence is ever observable.
func (s *Postgres) Put(ctx context.Context, doc Document, chunks []Chunk) error {
	if doc.Tags == nil {
		// pgx encodes a nil slice as SQL NULL; the tags column is NOT NULL.
		doc.Tags = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("put rollback", "error", rbErr)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, owner_id, filename, file_type, size_bytes, text_preview, category, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.OwnerID, doc.Filename, doc.FileType, doc.SizeBytes,
		doc.TextPreview, doc.Category, doc.Tags, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		var emb *pgvector.Vector
		if c.Embedding != nil {
			v := pgvector.NewVector(c.Embedding)
			emb = &v
		}
		batch.Queue(`
			INSERT INTO chunks (id, document_id, owner_id, chunk_index, text, word_count, character_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocumentID, doc.OwnerID, c.Index, c.Text, c.WordCount, c.CharacterCount, emb,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert chunk %d of document %s: %w", i, doc.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close chunk batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit document %s: %w", doc.ID, err)
	}

	s.logger.Debug("stored document", "id", doc.ID, "owner", doc.OwnerID, "chunks", len(chunks))
	return nil
}

// List returns the owner's documents ordered newest first.
func (s *Postgres) List(ctx context.Context, ownerID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, filename, file_type, size_bytes, text_preview, category, tags, created_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// Get returns one document header scoped to the owner.
func (s *Postgres) Get(ctx context.Context, ownerID string, id uuid.UUID) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, filename, file_type, size_bytes, text_preview, category, tags, created_at
		FROM documents
		WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document; chunks go with it through the cascading
// foreign key. Returns ErrNotFound when the row does not exist or belongs
// to a different owner.
func (s *Postgres) Delete(ctx context.Context, ownerID string, id uuid.UUID) (Document, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM documents
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, filename, file_type, size_bytes, text_preview, category, tags, created_at`,
		id, ownerID,
	)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("delete document %s: %w", id, err)
	}

	s.logger.Debug("deleted document", "id", id, "owner", ownerID)
	return doc, nil
}

// Candidates selects chunks for scoring. With a query embedding, embedded
// chunks come back ordered by cosine distance through the HNSW index, and
// un-embedded chunks are added via the full-text path so they stay
// reachable through text scoring. Without an embedding, the full-text
// index alone selects candidates, falling back to a bounded recent scan
// when the query produces no lexemes (e.g. all stopwords).
func (s *Postgres) Candidates(ctx context.Context, ownerID string, q CandidateQuery) ([]Candidate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	// nil when no filter: the $N::uuid[] IS NULL branch in each query then
	// matches every document.
	var docFilter []uuid.UUID
	if len(q.DocumentIDs) > 0 {
		docFilter = q.DocumentIDs
	}

	var out []Candidate

	if q.Embedding != nil {
		vec := pgvector.NewVector(q.Embedding)
		rows, err := s.pool.Query(ctx, candidateSelect+`
			WHERE c.owner_id = $1
			  AND c.embedding IS NOT NULL
			  AND ($2::uuid[] IS NULL OR c.document_id = ANY($2))
			ORDER BY c.embedding <=> $3
			LIMIT $4`,
			ownerID, docFilter, vec, limit,
		)
		if err != nil {
			return nil, fmt.Errorf("vector candidates: %w", err)
		}
		vectorHits, err := scanCandidates(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, vectorHits...)

		// Un-embedded chunks still participate via text scoring.
		rows, err = s.pool.Query(ctx, candidateSelect+`
			WHERE c.owner_id = $1
			  AND c.embedding IS NULL
			  AND ($2::uuid[] IS NULL OR c.document_id = ANY($2))
			  AND websearch_to_tsquery('english', $3) @@ to_tsvector('english', c.text)
			LIMIT $4`,
			ownerID, docFilter, q.Text, limit,
		)
		if err != nil {
			return nil, fmt.Errorf("text candidates: %w", err)
		}
		textHits, err := scanCandidates(rows)
		if err != nil {
			return nil, err
		}
		return append(out, textHits...), nil
	}

	rows, err := s.pool.Query(ctx, candidateSelect+`
		WHERE c.owner_id = $1
		  AND ($2::uuid[] IS NULL OR c.document_id = ANY($2))
		  AND websearch_to_tsquery('english', $3) @@ to_tsvector('english', c.text)
		LIMIT $4`,
		ownerID, docFilter, q.Text, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("text candidates: %w", err)
	}
	hits, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, nil
	}

	// No full-text lexemes matched (short terms, stopwords); fall back to
	// a bounded recent scan so the similarity engine still sees candidates.
	rows, err = s.pool.Query(ctx, candidateSelect+`
		WHERE c.owner_id = $1
		  AND ($2::uuid[] IS NULL OR c.document_id = ANY($2))
		ORDER BY d.created_at DESC, c.chunk_index ASC
		LIMIT $3`,
		ownerID, docFilter, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fallback candidates: %w", err)
	}
	return scanCandidates(rows)
}

// Stats aggregates the owner's stored documents and chunks.
func (s *Postgres) Stats(ctx context.Context, ownerID string) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM documents WHERE owner_id = $1`,
		ownerID,
	).Scan(&st.DocumentCount, &st.TotalSizeBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("document stats: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM chunks WHERE owner_id = $1`,
		ownerID,
	).Scan(&st.ChunkCount)
	if err != nil {
		return Stats{}, fmt.Errorf("chunk stats: %w", err)
	}

	return st, nil
}

// candidateSelect is the shared projection for candidate queries: chunk
// columns followed by the owning document's columns.
const candidateSelect = `
	SELECT c.id, c.document_id, c.chunk_index, c.text, c.word_count, c.character_count, c.embedding,
	       d.id, d.owner_id, d.filename, d.file_type, d.size_bytes, d.text_preview, d.category, d.tags, d.created_at
	FROM chunks c
	JOIN documents d ON d.id = c.document_id`

// scanCandidates reads joined chunk+document rows.
func scanCandidates(rows pgx.Rows) ([]Candidate, error) {
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Chunk
		var d Document
		var emb *pgvector.Vector
		err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Index, &c.Text, &c.WordCount, &c.CharacterCount, &emb,
			&d.ID, &d.OwnerID, &d.Filename, &d.FileType, &d.SizeBytes, &d.TextPreview, &d.Category, &d.Tags, &d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if emb != nil {
			c.Embedding = emb.Slice()
		}
		out = append(out, Candidate{Chunk: c, Document: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidate rows: %w", err)
	}
	return out, nil
}

// scanDocuments reads document rows from a List query.
func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		var d Document
		err := rows.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.FileType, &d.SizeBytes,
			&d.TextPreview, &d.Category, &d.Tags, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("document rows: %w", err)
	}
	return out, nil
}

// scanDocument reads a single document row.
func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OwnerID, &d.Filename, &d.FileType, &d.SizeBytes,
		&d.TextPreview, &d.Category, &d.Tags, &d.CreatedAt)
	return d, err
}
