package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/goleak"

	"github.com/complidocs/complidocs/internal/docstore"
	"github.com/complidocs/complidocs/internal/retrieval"
	"github.com/complidocs/complidocs/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestServer wires the full stack on an in-memory store.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	svc := retrieval.New(docstore.NewMemory(), &testutil.StaticEmbedder{}, testutil.DiscardLogger(), retrieval.Config{})
	srv, err := NewServer(ServerConfig{
		Logger:      testutil.DiscardLogger(),
		Service:     svc,
		CORSOrigins: []string{"http://localhost:4200"},
		RateRPS:     1000,
		RateBurst:   1000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("NewServer accepted nil service")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// No owner header needed for probes.
	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/ready = %d (nil pool should report ready)", rec.Code)
	}
}

func TestOwnerRequired(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/documents"},
		{http.MethodGet, "/api/v1/documents"},
		{http.MethodPost, "/api/v1/search"},
		{http.MethodGet, "/api/v1/stats"},
	}
	for _, p := range paths {
		rec := doJSON(t, srv, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without owner = %d, want 401", p.method, p.path, rec.Code)
		}
		body := decode[errorBody](t, rec)
		if body.Error.Code != "owner_required" {
			t.Errorf("error code = %q", body.Error.Code)
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Upload.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", "tenant-1", uploadRequest{
		Filename: "sop-batch-review.pdf",
		FileType: "pdf",
		Text:     testutil.SampleComplianceText,
		Category: "quality",
		Tags:     []string{"gmp", "sop"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	up := decode[uploadResponse](t, rec)
	if up.ID == "" || up.Chunks < 1 {
		t.Fatalf("upload response = %+v", up)
	}

	// List.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/documents", "tenant-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := decode[struct {
		Documents []documentDTO `json:"documents"`
		Total     int           `json:"total"`
	}](t, rec)
	if len(list.Documents) != 1 || list.Documents[0].ID != up.ID {
		t.Fatalf("list = %+v", list)
	}
	if list.Total != 1 {
		t.Errorf("list total = %d, want 1", list.Total)
	}
	if list.Documents[0].FileType != "pdf" {
		t.Errorf("fileType = %q", list.Documents[0].FileType)
	}

	// Get single.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/documents/"+up.ID, "tenant-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	got := decode[documentDTO](t, rec)
	if got.Filename != "sop-batch-review.pdf" {
		t.Errorf("get filename = %q", got.Filename)
	}

	// Search finds the content. The word-hash test embedder produces only
	// modest cosine overlap for partially matching text, so the request
	// carries an explicit low threshold instead of the vector default.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", "tenant-1", searchRequest{
		Query:     "quality unit batch record review",
		Threshold: 0.05,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d: %s", rec.Code, rec.Body.String())
	}
	sr := decode[searchResponse](t, rec)
	if sr.TotalFound < 1 || len(sr.Results) < 1 {
		t.Fatalf("search returned nothing: %+v", sr)
	}
	if sr.Results[0].DocumentID != up.ID {
		t.Errorf("top result from %s", sr.Results[0].DocumentID)
	}
	for _, r := range sr.Results {
		if r.Similarity < 0 || r.Similarity > 1 {
			t.Errorf("similarity %v outside [0,1]", r.Similarity)
		}
	}

	// Stats.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/stats", "tenant-1", nil)
	st := decode[statsResponse](t, rec)
	if st.TotalDocuments != 1 || st.TotalChunks != up.Chunks {
		t.Errorf("stats = %+v", st)
	}

	// Delete.
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/documents/"+up.ID, "tenant-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	del := decode[struct {
		Message    string `json:"message"`
		DocumentID string `json:"documentId"`
		Filename   string `json:"filename"`
	}](t, rec)
	if del.DocumentID != up.ID || del.Filename != "sop-batch-review.pdf" || del.Message == "" {
		t.Errorf("delete body = %+v", del)
	}

	// Gone afterwards.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/documents/"+up.ID, "tenant-1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", "tenant-a", uploadRequest{
		Filename: "private.txt",
		Text:     "confidential deviation report for tenant a",
	})
	up := decode[uploadResponse](t, rec)

	// Other tenant cannot see or delete it.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/documents/"+up.ID, "tenant-b", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant get = %d, want 404", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/documents/"+up.ID, "tenant-b", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-tenant delete = %d, want 404", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/search", "tenant-b", searchRequest{
		Query: "confidential deviation report for tenant a",
	})
	sr := decode[searchResponse](t, rec)
	if sr.TotalFound != 0 {
		t.Errorf("cross-tenant search found %d results", sr.TotalFound)
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t)

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString("{not json"))
		req.Header.Set(ownerHeader, "tenant-1")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("malformed body = %d, want 400", rec.Code)
		}
	})

	t.Run("empty document text", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", "tenant-1", uploadRequest{
			Filename: "empty.txt",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("empty text = %d, want 400", rec.Code)
		}
		body := decode[errorBody](t, rec)
		if body.Error.Code != "invalid_request" {
			t.Errorf("error code = %q", body.Error.Code)
		}
	})

	t.Run("empty search query", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", "tenant-1", searchRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("empty query = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid document id", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/v1/documents/not-a-uuid", "tenant-1", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad uuid = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid filter id in search", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", "tenant-1", searchRequest{
			Query:       "anything",
			DocumentIDs: []string{"nope"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad filter id = %d, want 400", rec.Code)
		}
	})
}

func TestSearchLimitOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 4; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/documents", "tenant-1", uploadRequest{
			Filename: fmt.Sprintf("doc-%d.txt", i),
			Text:     "annual product quality review aggregates batch data",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("upload %d = %d", i, rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/search", "tenant-1", searchRequest{
		Query: "annual product quality review aggregates batch data",
		Limit: 2,
	})
	sr := decode[searchResponse](t, rec)
	if len(sr.Results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(sr.Results))
	}
	if sr.TotalFound != 4 {
		t.Errorf("totalFound = %d, want 4", sr.TotalFound)
	}
}
