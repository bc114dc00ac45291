// Package ai provides note analysis: an OpenAI-compatible provider client,
// a rule-based heuristic fallback, and the anonymizer that keeps secrets out
// of provider requests.
package ai

import (
	"context"
	"encoding/json"
	"math"
)

// Analysis is the metadata derived from note text.
type Analysis struct {
	Title       string            `json:"title"`
	ShortTitle  string            `json:"short_title"`
	Category    string            `json:"category"`
	Tags        []string          `json:"tags"`
	Summary     string            `json:"summary"`
	Entities    map[string]string `json:"entities"`
	Sensitivity string            `json:"sensitivity"`
}

// SearchMeta is the parsed intent of a free-text search query.
type SearchMeta struct {
	SemanticQuery string   `json:"semantic_query"`
	Keywords      []string `json:"keywords"`
	TimeStart     string   `json:"time_start"` // YYYY-MM-DD or empty
	TimeEnd       string   `json:"time_end"`
}

// Analyzer is the provider interface consumed by the note service. Any error
// (including timeouts) must be recovered by the caller via the heuristic
// fallback; it never fails a write.
type Analyzer interface {
	Analyze(ctx context.Context, text string, categories []string) (Analysis, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	ParseSearchQuery(ctx context.Context, query string) (SearchMeta, error)
	Summarize(ctx context.Context, notes []string, days int) (string, error)
	Answer(ctx context.Context, question string, notes []string) (string, error)
}

// CosineSimilarity computes cosine similarity between two vectors.
// Returns 0.0 for zero-norm vectors or mismatched lengths.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	na := math.Sqrt(normA)
	nb := math.Sqrt(normB)
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (na * nb)
}

// ParseEmbedding decodes a stored JSON embedding. Malformed or empty input
// yields nil, which simply disables semantic ranking for that note.
func ParseEmbedding(raw string) []float64 {
	if raw == "" {
		return nil
	}
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}
