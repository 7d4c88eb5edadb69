// Package api provides the JSON REST API server for the document
// retrieval service.
//
// # Architecture
//
// The server uses Go 1.22+ method-pattern routing with a layered
// middleware stack:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Owner → Routes
//
// Health probes (/health, /ready) bypass the middleware stack via a
// top-level mux so they stay fast and unauthenticated.
//
// # Endpoints
//
// Health probes (no middleware):
//   - GET /health — liveness
//   - GET /ready  — readiness, pings the database
//
// Documents (owner-scoped):
//   - POST   /api/v1/documents      — upload and ingest a document
//   - GET    /api/v1/documents      — list the caller's documents
//   - GET    /api/v1/documents/{id} — get one document header
//   - DELETE /api/v1/documents/{id} — delete a document and its chunks
//
// Search:
//   - POST /api/v1/search — similarity search over the caller's chunks
//
// Stats:
//   - GET /api/v1/stats — document/chunk counts and stored bytes
//
// # Tenancy
//
// Every /api/v1 request must carry the caller identity in the
// X-Owner-ID header; requests without it are rejected with 401 before
// reaching any handler. Handlers never see another tenant's data: the
// owner ID flows into every store query.
//
// # Error Handling
//
// Errors use a stable envelope:
//
//	{"error": {"code": "...", "message": "..."}}
//
// Codes: invalid_request (400), owner_required (401), not_found (404),
// rate_limited (429), internal_error (500). Internal details are logged,
// never returned to the client.
package api
