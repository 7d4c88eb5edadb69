// Package retrieval orchestrates document ingestion and similarity search
// over a document store and an embedding provider. It is the only package
// the transport layer talks to.
//
// The service is stateless: every invocation validates, processes and
// persists without session state, so it can run in a fresh process per
// request. The store passed at construction is the only shared mutable
// resource.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/complidocs/complidocs/internal/chunker"
	"github.com/complidocs/complidocs/internal/docstore"
	"github.com/complidocs/complidocs/internal/embedding"
	"github.com/complidocs/complidocs/internal/similarity"
)

// ErrInvalidInput indicates bad or missing caller input. Surfaced to the
// caller verbatim; never retried.
var ErrInvalidInput = errors.New("invalid input")

// Defaults for search and ingestion behavior.
const (
	// DefaultSearchLimit caps results when the caller does not set one.
	DefaultSearchLimit = 10

	// MaxSearchLimit is the absolute cap on requested result counts.
	MaxSearchLimit = 100

	// previewLength bounds the stored document text preview.
	previewLength = 500

	// defaultMaxParallelEmbeds bounds concurrent embedding calls per upload.
	defaultMaxParallelEmbeds = 4
)

// Config tunes a Service. Zero values select the package defaults.
type Config struct {
	ChunkSize         int           // max chunk size in characters
	ChunkOverlap      int           // overlap between consecutive chunks
	EmbedTimeout      time.Duration // per embedding call upper bound
	MaxParallelEmbeds int64         // concurrent embedding calls per upload
}

// Service coordinates the chunker, embedding provider and document store.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	store        docstore.Store
	provider     embedding.Provider
	logger       *slog.Logger
	chunkSize    int
	chunkOverlap int
	embedTimeout time.Duration
	maxParallel  int64
}

// New creates a Service. store and provider are required; logger may be
// nil (defaults to slog.Default).
func New(store docstore.Store, provider embedding.Provider, logger *slog.Logger, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultMaxSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultOverlap
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = embedding.DefaultTimeout
	}
	if cfg.MaxParallelEmbeds <= 0 {
		cfg.MaxParallelEmbeds = defaultMaxParallelEmbeds
	}

	return &Service{
		store:        store,
		provider:     provider,
		logger:       logger,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		embedTimeout: cfg.EmbedTimeout,
		maxParallel:  cfg.MaxParallelEmbeds,
	}
}

// UploadInput is the caller-supplied description of a new document.
type UploadInput struct {
	Filename  string
	Text      string
	FileType  string // pdf/doc/docx/txt; anything else becomes txt
	SizeBytes int64  // 0 = derived from Text
	Category  string
	Tags      []string
}

// UploadResult identifies the stored document.
type UploadResult struct {
	DocumentID uuid.UUID
	Filename   string
	ChunkCount int
}

// Upload validates, chunks, embeds and persists a document atomically.
//
// Per-chunk embedding failures never abort the upload: the chunk is
// stored without an embedding and stays reachable through text-mode
// search. A storage failure aborts the whole operation with nothing
// persisted. The raw text is never returned to the caller; only the
// bounded preview is stored on the document header.
func (s *Service) Upload(ctx context.Context, ownerID string, in UploadInput) (UploadResult, error) {
	if ownerID == "" {
		return UploadResult{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Filename) == "" {
		return UploadResult{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	text := in.Text
	if strings.TrimSpace(text) == "" {
		return UploadResult{}, fmt.Errorf("%w: document text is empty", ErrInvalidInput)
	}

	segments := chunker.Chunk(text, s.chunkSize, s.chunkOverlap)
	if len(segments) == 0 {
		return UploadResult{}, fmt.Errorf("%w: document produced no chunks", ErrInvalidInput)
	}

	docID := uuid.New()
	sizeBytes := in.SizeBytes
	if sizeBytes <= 0 {
		sizeBytes = int64(len(text))
	}

	doc := docstore.Document{
		ID:          docID,
		OwnerID:     ownerID,
		Filename:    in.Filename,
		FileType:    docstore.NormalizeFileType(in.FileType),
		SizeBytes:   sizeBytes,
		TextPreview: preview(text),
		Category:    in.Category,
		Tags:        in.Tags,
		CreatedAt:   time.Now().UTC(),
	}

	chunks := s.embedSegments(ctx, docID, segments)

	if err := s.store.Put(ctx, doc, chunks); err != nil {
		return UploadResult{}, fmt.Errorf("storing document: %w", err)
	}

	s.logger.Info("document ingested",
		"owner", ownerID,
		"document_id", docID,
		"chunks", len(chunks),
		"embedded", countEmbedded(chunks),
	)

	return UploadResult{
		DocumentID: docID,
		Filename:   in.Filename,
		ChunkCount: len(chunks),
	}, nil
}

// embedSegments converts chunker segments into store chunks, fetching
// embeddings in parallel bounded by the semaphore. Each call is
// independently fault-isolated: a timeout or provider failure leaves that
// chunk's embedding nil without affecting siblings, and index order is
// preserved regardless of completion order.
func (s *Service) embedSegments(ctx context.Context, docID uuid.UUID, segments []chunker.Segment) []docstore.Chunk {
	chunks := make([]docstore.Chunk, len(segments))
	sem := semaphore.NewWeighted(s.maxParallel)
	var wg sync.WaitGroup

	for i, seg := range segments {
		chunks[i] = docstore.Chunk{
			ID:             docstore.ChunkID(docID, seg.Index),
			DocumentID:     docID,
			Index:          seg.Index,
			Text:           seg.Text,
			WordCount:      seg.WordCount,
			CharacterCount: seg.CharacterCount,
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Request context gone; remaining chunks stay un-embedded.
			continue
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer sem.Release(1)

			embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
			defer cancel()

			vec, err := s.provider.Embed(embedCtx, text)
			if err != nil {
				s.logger.Warn("chunk embedding failed, storing without vector",
					"document_id", docID, "chunk_index", i, "error", err)
				return
			}
			chunks[i].Embedding = vec
		}(i, seg.Text)
	}

	wg.Wait()
	return chunks
}

/// SearchOptions tunes a search request. Zero values select defaults:
// Limit 10, Threshold 0.7 in vector mode and 0.3 in text mode.
type SearchOptions struct {
	Limit       int
	Threshold   float64
	DocumentIDs []uuid.UUID
}

// SearchResult is one ranked match. Similarity is clamped to [0,1] for
// display.
type SearchResult struct {
	DocumentID uuid.UUID
	Filename   string
	FileType   string
	Category   string
	Tags       []string
	ChunkIndex int
	Text       string
	Similarity float64
}

// Search embeds the query, fetches tenant-scoped candidates, scores them
// in the mode matching each chunk's state, then filters, ranks and
// truncates. A query-embedding failure silently downgrades the whole
// request to text-mode scoring; it never fails the request.
//
// Returns the ranked page and the total number of matches above the
// threshold before truncation.
func (s *Service) Search(ctx context.Context, ownerID, query string, opts SearchOptions) ([]SearchResult, int, error) {
	if ownerID == "" {
		return nil, 0, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return nil, 0, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	queryVec := s.embedQuery(ctx, query)

	candidates, err := s.store.Candidates(ctx, ownerID, docstore.CandidateQuery{
		Embedding:   queryVec,
		Text:        query,
		DocumentIDs: opts.DocumentIDs,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetching candidates: %w", err)
	}

	results := scoreCandidates(candidates, query, queryVec, opts.Threshold)
	totalFound := len(results)
	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug("search completed",
		"owner", ownerID,
		"mode", searchMode(queryVec),
		"candidates", len(candidates),
		"matches", totalFound,
	)

	return results, totalFound, nil
}

// embedQuery returns the query embedding, or nil when the provider is
// unavailable — the caller then scores everything in text mode.
func (s *Service) embedQuery(ctx context.Context, query string) []float32 {
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	vec, err := s.provider.Embed(embedCtx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, using text-mode search", "error", err)
		return nil
	}
	return vec
}

// scoreCandidates applies the similarity engine to each candidate in the
// mode consistent with its state, filters by threshold and sorts
// descending. Ties break deterministically by document ID then chunk
// index.
func scoreCandidates(candidates []docstore.Candidate, query string, queryVec []float32, threshold float64) []SearchResult {
	var results []SearchResult
	for _, cand := range candidates {
		var score, cutoff float64
		if queryVec != nil && cand.Chunk.Embedding != nil {
			score = similarity.Cosine(queryVec, cand.Chunk.Embedding)
			cutoff = similarity.DefaultVectorThreshold
		} else {
			score = similarity.Text(query, cand.Chunk.Text)
			cutoff = similarity.DefaultTextThreshold
		}
		if threshold > 0 {
			cutoff = threshold
		}
		if score < cutoff {
			continue
		}

		results = append(results, SearchResult{
			DocumentID: cand.Document.ID,
			Filename:   cand.Document.Filename,
			FileType:   cand.Document.FileType,
			Category:   cand.Document.Category,
			Tags:       cand.Document.Tags,
			ChunkIndex: cand.Chunk.Index,
			Text:       cand.Chunk.Text,
			Similarity: similarity.Clamp(score),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID.String() < results[j].DocumentID.String()
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	return results
}

// List returns the owner's document headers, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]docstore.Document, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	docs, err := s.store.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Get returns one document header. Propagates docstore.ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (docstore.Document, error) {
	if ownerID == "" {
		return docstore.Document{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	return s.store.Get(ctx, ownerID, id)
}

// Delete removes a document and all its chunks. Propagates
// docstore.ErrNotFound when the document is missing or owned by someone
// else.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) (docstore.Document, error) {
	if ownerID == "" {
		return docstore.Document{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	doc, err := s.store.Delete(ctx, ownerID, id)
	if err != nil {
		return docstore.Document{}, err
	}
	s.logger.Info("document deleted", "owner", ownerID, "document_id", id)
	return doc, nil
}

// Stats returns the owner's storage summary.
func (s *Service) Stats(ctx context.Context, ownerID string) (docstore.Stats, error) {
	if ownerID == "" {
		return docstore.Stats{}, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	st, err := s.store.Stats(ctx, ownerID)
	if err != nil {
		return docstore.Stats{}, fmt.Errorf("fetching stats: %w", err)
	}
	return st, nil
}

// preview returns a bounded prefix of text for display on the document
// header, cut on a rune boundary so the prefix stays valid UTF-8.
func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLength {
		return text
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func countEmbedded(chunks []docstore.Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Embedding != nil {
			n++
		}
	}
	return n
}

func searchMode(queryVec []float32) string {
	if queryVec != nil {
		return "vector"
	}
	return "text"
}
