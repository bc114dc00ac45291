package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ubastic/notemind/internal/apperr"
)

// Client talks to an OpenAI-compatible provider. Callers pass it already
// anonymized text; placeholder restoration happens above this layer.
type Client struct {
	baseURL    string
	apiKey     string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewClient builds a provider client. The timeout bounds every request so a
// slow provider degrades to the heuristic path instead of stalling writes.
func NewClient(baseURL, apiKey, chatModel, embedModel string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: provider base url is not configured", apperr.ErrUpstream)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provider request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read provider response: %v", apperr.ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: provider returned %d", apperr.ErrUpstream, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode provider response: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	model := c.chatModel
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.2,
	}
	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: provider returned no choices", apperr.ErrUpstream)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	model := c.embedModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	var resp embeddingResponse
	if err := c.post(ctx, "/v1/embeddings", embeddingRequest{Model: model, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: provider returned no embedding", apperr.ErrUpstream)
	}
	return resp.Data[0].Embedding, nil
}

// extractJSON pulls the outermost JSON object out of a completion, tolerating
// prose or code fences around it.
func extractJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || start >= end {
		return "", false
	}
	return raw[start : end+1], true
}

// looseAnalysis tolerates providers that return tags as a single string or
// entity values as non-strings.
type looseAnalysis struct {
	Title       string          `json:"title"`
	ShortTitle  string          `json:"short_title"`
	Category    string          `json:"category"`
	Tags        json.RawMessage `json:"tags"`
	Summary     string          `json:"summary"`
	Entities    json.RawMessage `json:"entities"`
	Sensitivity string          `json:"sensitivity"`
}

func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		var out []string
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
	}
	return nil
}

func decodeEntities(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return map[string]string{}
	}
	entities := make(map[string]string, len(loose))
	for k, v := range loose {
		switch value := v.(type) {
		case string:
			entities[k] = value
		default:
			if encoded, err := json.Marshal(value); err == nil {
				entities[k] = string(encoded)
			}
		}
	}
	return entities
}

// Analyze asks the provider to derive note metadata. The result keeps the
// provider's category even when it strays outside options; the caller clamps.
func (c *Client) Analyze(ctx context.Context, text string, categories []string) (Analysis, error) {
	options := NormalizeCategories(categories)
	hint, _ := json.Marshal(options)
	prompt := fmt.Sprintf(
		"Analyze the note and respond in JSON with keys: "+
			"short_title, title, category, tags, summary, entities, sensitivity. "+
			"Category must be one of %s. "+
			"short_title must be <= %d characters.\n\nNote:\n%s\n",
		hint, ShortTitleMaxLen, text,
	)
	raw, err := c.chat(ctx, prompt)
	if err != nil {
		return Analysis{}, err
	}
	snippet, ok := extractJSON(raw)
	if !ok {
		return Analysis{}, fmt.Errorf("%w: analysis response is not json", apperr.ErrUpstream)
	}
	var loose looseAnalysis
	if err := json.Unmarshal([]byte(snippet), &loose); err != nil {
		return Analysis{}, fmt.Errorf("%w: decode analysis: %v", apperr.ErrUpstream, err)
	}
	return Analysis{
		Title:       strings.TrimSpace(loose.Title),
		ShortTitle:  NormalizeShortTitle(loose.ShortTitle),
		Category:    strings.ToLower(strings.TrimSpace(loose.Category)),
		Tags:        decodeStringList(loose.Tags),
		Summary:     strings.TrimSpace(loose.Summary),
		Entities:    decodeEntities(loose.Entities),
		Sensitivity: strings.ToLower(strings.TrimSpace(loose.Sensitivity)),
	}, nil
}

type looseSearchMeta struct {
	SemanticQuery string          `json:"semantic_query"`
	Keywords      json.RawMessage `json:"keywords"`
	TimeStart     string          `json:"time_start"`
	TimeEnd       string          `json:"time_end"`
}

// NormalizeSearchMeta folds the raw query into the keyword list (always
// first) and dedupes case-insensitively.
func NormalizeSearchMeta(meta SearchMeta, query string) SearchMeta {
	if strings.TrimSpace(meta.SemanticQuery) == "" {
		meta.SemanticQuery = query
	}
	keywords := append([]string{query}, meta.Keywords...)
	var deduped []string
	seen := make(map[string]struct{}, len(keywords))
	for _, item := range keywords {
		lowered := strings.ToLower(item)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		deduped = append(deduped, item)
	}
	meta.Keywords = deduped
	return meta
}

// ParseSearchQuery extracts intent and a time range from a free-text query.
func (c *Client) ParseSearchQuery(ctx context.Context, query string) (SearchMeta, error) {
	prompt := fmt.Sprintf(
		"You extract search intent and time range for a personal notes app. "+
			"Return ONLY valid JSON with keys: semantic_query, keywords, time_start, time_end. "+
			"semantic_query should remove time expressions and keep the core intent. "+
			"keywords should include important entities, synonyms, and related terms in the user's language. "+
			"time_start and time_end should be ISO dates (YYYY-MM-DD) or null. "+
			"If there is a relative time phrase (like last month, yesterday), convert it using today's date. "+
			"Today is %s. Query: %s",
		time.Now().Format("2006-01-02"), query,
	)
	raw, err := c.chat(ctx, prompt)
	if err != nil {
		return SearchMeta{}, err
	}
	snippet, ok := extractJSON(raw)
	if !ok {
		return SearchMeta{}, fmt.Errorf("%w: search parse response is not json", apperr.ErrUpstream)
	}
	var loose looseSearchMeta
	if err := json.Unmarshal([]byte(snippet), &loose); err != nil {
		return SearchMeta{}, fmt.Errorf("%w: decode search parse: %v", apperr.ErrUpstream, err)
	}
	meta := SearchMeta{
		SemanticQuery: strings.TrimSpace(loose.SemanticQuery),
		Keywords:      decodeStringList(loose.Keywords),
		TimeStart:     strings.TrimSpace(loose.TimeStart),
		TimeEnd:       strings.TrimSpace(loose.TimeEnd),
	}
	return NormalizeSearchMeta(meta, query), nil
}

// Summarize condenses recent notes into a short digest.
func (c *Client) Summarize(ctx context.Context, notes []string, days int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize these notes from the last %d days in 5 bullet points.\n\n%s",
		days, strings.Join(notes, "\n"),
	)
	return c.chat(ctx, prompt)
}

// Answer responds to a question grounded on the supplied notes.
func (c *Client) Answer(ctx context.Context, question string, notes []string) (string, error) {
	prompt := fmt.Sprintf(
		"Answer the question using the notes.\nQuestion: %s\nNotes:\n%s",
		question, strings.Join(notes, "\n"),
	)
	return c.chat(ctx, prompt)
}

var _ Analyzer = (*Client)(nil)
