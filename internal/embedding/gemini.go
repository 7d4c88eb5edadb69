package embedding

import (
	"context"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// DefaultModel is the Gemini embedder used when config does not override it.
const DefaultModel = "text-embedding-004"

// Gemini is a Provider backed by the Google AI embedding API via genkit.
// One outbound network call per Embed invocation; no caching.
//
// Gemini is safe for concurrent use by multiple goroutines.
type Gemini struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewGemini initializes genkit with the Google AI plugin and returns a
// Gemini provider for the given model (empty = DefaultModel).
//
// Fails with ErrUnavailable when GEMINI_API_KEY is not set: the key check
// happens at construction so a misconfigured deployment fails fast instead
// of on the first upload.
func NewGemini(ctx context.Context, model string, logger *slog.Logger) (*Gemini, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return nil, unavailable("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		return nil, unavailable("unknown embedder model %q", model)
	}

	return &Gemini{embedder: embedder, logger: logger}, nil
}

// NewFromEmbedder wraps an existing genkit embedder. Used by tests and by
// callers that manage genkit initialization themselves.
func NewFromEmbedder(embedder ai.Embedder, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{embedder: embedder, logger: logger}
}

// Embed returns the embedding vector for text, truncated to MaxInputChars
// before sending. All failure modes (transport error, empty response,
// malformed response) collapse into ErrUnavailable.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	text = Truncate(text)

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		g.logger.Debug("embedding call failed", "error", err, "input_len", len(text))
		return nil, unavailable("embed call: %v", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, unavailable("empty embedding in response")
	}

	return resp.Embeddings[0].Embedding, nil
}
