// Package docstore persists documents and their chunk sequences, keyed by
// owner. All operations are tenant-scoped at the query level: a store never
// returns another owner's data regardless of how it is called.
//
// Two implementations exist: Postgres (the durable production backend,
// postgres.go) and Memory (a test double with identical semantics,
// memory.go). Put is all-or-nothing in both: either the document and every
// chunk land, or nothing does.
package docstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the document does not exist or does not belong to
// the requesting owner. The two cases are deliberately indistinguishable so
// tenants cannot probe for other tenants' document IDs.
var ErrNotFound = errors.New("document not found")

// Recognized file types. Anything else normalizes to FileTypeText.
const (
	FileTypePDF  = "pdf"
	FileTypeDoc  = "doc"
	FileTypeDocx = "docx"
	FileTypeText = "txt"
)

// Document is the stored header for an uploaded document. The full raw
// text is never persisted on the document row; only a bounded preview.
type Document struct {
	ID          uuid.UUID
	OwnerID     string
	Filename    string
	FileType    string
	SizeBytes   int64
	TextPreview string
	Category    string
	Tags        []string
	CreatedAt   time.Time
}

// Chunk is one bounded segment of a document's text, the unit of
// retrieval. Embedding is nil when the provider failed for this chunk;
// such chunks remain searchable through text-mode scoring.
//
// Chunks of one document form a gapless 0..N-1 sequence by Index.
type Chunk struct {
	ID             string
	DocumentID     uuid.UUID
	Index          int
	Text           string
	WordCount      int
	CharacterCount int
	Embedding      []float32
}

// Candidate pairs a chunk with its owning document for scoring.
type Candidate struct {
	Chunk    Chunk
	Document Document
}

// CandidateQuery selects chunks for similarity scoring. How candidates are
// found (vector index, full-text index, linear scan) is an implementation
// detail of the backend; the contract is only that results belong to the
// given owner.
type CandidateQuery struct {
	// Embedding is the query vector; nil means text-mode only.
	Embedding []float32

	// Text is the raw query, used for full-text candidate selection.
	Text string

	// DocumentIDs optionally restricts candidates to specific documents.
	DocumentIDs []uuid.UUID

	// Limit caps candidates per selection strategy (0 = backend default).
	Limit int
}

// Stats summarizes one owner's stored data.
type Stats struct {
	DocumentCount  int
	ChunkCount     int
	TotalSizeBytes int64
}

// Store is the document persistence contract consumed by the retrieval
// service.
type Store interface {
	// Put persists a document header and its chunk sequence atomically.
	Put(ctx context.Context, doc Document, chunks []Chunk) error

	// List returns the owner's document headers, newest first.
	List(ctx context.Context, ownerID string) ([]Document, error)

	// Get returns one document header, or ErrNotFound.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (Document, error)

	// Delete removes a document and cascades to all its chunks. Returns the
	// deleted header, or ErrNotFound.
	Delete(ctx context.Context, ownerID string, id uuid.UUID) (Document, error)

	// Candidates returns (chunk, document) pairs for scoring.
	Candidates(ctx context.Context, ownerID string, q CandidateQuery) ([]Candidate, error)

	// Stats returns document/chunk counts and total stored bytes.
	Stats(ctx context.Context, ownerID string) (Stats, error)
}

// NormalizeFileType maps a caller-supplied file type onto the closed set
// of recognized types, defaulting to txt.
func NormalizeFileType(ft string) string {
	switch ft := strings.ToLower(ft); ft {
	case FileTypePDF, FileTypeDoc, FileTypeDocx, FileTypeText:
		return ft
	default:
		return FileTypeText
	}
}

// ChunkID derives the stable chunk identifier from the owning document and
// the chunk's position.
func ChunkID(docID uuid.UUID, index int) string {
	return docID.String() + ":" + strconv.Itoa(index)
}
