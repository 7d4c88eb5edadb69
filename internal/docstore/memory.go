package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used as a test double. It mirrors the
// Postgres backend's observable semantics — tenant scoping, newest-first
// listing, cascade delete and all-or-nothing Put — without durability.
// Do not wire it into production; each process sees only its own data.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[uuid.UUID]Document // ownerID -> docID -> header
	chunks map[uuid.UUID][]Chunk             // docID -> ordered chunks

	// PutErr, when set, makes the next Put fail before any state changes.
	// Lets tests exercise the storage-failure path.
	PutErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string]map[uuid.UUID]Document),
		chunks: make(map[uuid.UUID][]Chunk),
	}
}

// Put stores the document and chunks under one lock acquisition: a reader
// never observes the document without its full chunk sequence.
func (m *Memory) Put(_ context.Context, doc Document, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		err := m.PutErr
		m.PutErr = nil
		return err
	}

	owned := m.docs[doc.OwnerID]
	if owned == nil {
		owned = make(map[uuid.UUID]Document)
		m.docs[doc.OwnerID] = owned
	}
	owned[doc.ID] = doc

	cp := make([]Chunk, len(chunks))
	copy(cp, chunks)
	m.chunks[doc.ID] = cp
	return nil
}

// List returns the owner's documents, newest first.
func (m *Memory) List(_ context.Context, ownerID string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Document, 0, len(m.docs[ownerID]))
	for _, d := range m.docs[ownerID] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// Get returns one document header, or ErrNotFound.
func (m *Memory) Get(_ context.Context, ownerID string, id uuid.UUID) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ownerID][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Delete removes the document and its chunks, or returns ErrNotFound.
func (m *Memory) Delete(_ context.Context, ownerID string, id uuid.UUID) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ownerID][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	delete(m.docs[ownerID], id)
	delete(m.chunks, id)
	return doc, nil
}

// Candidates does a linear scan over the owner's chunks. Ordering is
// deterministic (newest document first, then chunk index) so tests that
// depend on candidate limits behave predictably.
func (m *Memory) Candidates(ctx context.Context, ownerID string, q CandidateQuery) ([]Candidate, error) {
	docs, err := m.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	filter := make(map[uuid.UUID]bool, len(q.DocumentIDs))
	for _, id := range q.DocumentIDs {
		filter[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Candidate
	for _, d := range docs {
		if len(filter) > 0 && !filter[d.ID] {
			continue
		}
		for _, c := range m.chunks[d.ID] {
			out = append(out, Candidate{Chunk: c, Document: d})
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Stats aggregates the owner's documents and chunks.
func (m *Memory) Stats(_ context.Context, ownerID string) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var st Stats
	for id, d := range m.docs[ownerID] {
		st.DocumentCount++
		st.TotalSizeBytes += d.SizeBytes
		st.ChunkCount += len(m.chunks[id])
	}
	return st, nil
}

// ChunkTexts returns the stored chunk texts of a document in index order.
// Test helper for asserting chunk sequences.
func (m *Memory) ChunkTexts(id uuid.UUID) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chunks := m.chunks[id]
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

var _ Store = (*Memory)(nil)
var _ Store = (*Postgres)(nil)
