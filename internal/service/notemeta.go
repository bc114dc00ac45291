package service

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/model"
)

const (
	relatedKeywordLimit = 12
	// RelatedDefaultLimit caps related-note responses unless the caller asks
	// for fewer.
	RelatedDefaultLimit = 6
)

var (
	attachmentRefPattern = regexp.MustCompile(`/api/attachments/(\d+)`)
	wordTokenPattern     = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9_-]{2,}`)
	cjkTokenPattern      = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,}`)
	anonTagPattern       = regexp.MustCompile(`(?i)anon_[0-9a-f]{8}`)
)

// extractAttachmentIDs pulls referenced attachment ids out of note content.
func extractAttachmentIDs(content string) []int64 {
	if content == "" {
		return nil
	}
	var ids []int64
	seen := make(map[int64]struct{})
	for _, match := range attachmentRefPattern.FindAllStringSubmatch(content, -1) {
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// normalizeTags trims tags and drops leftovers of anonymization placeholders.
func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := strings.TrimSpace(tag)
		if cleaned == "" || anonTagPattern.MatchString(cleaned) {
			continue
		}
		normalized = append(normalized, cleaned)
	}
	return normalized
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	raw, _ := json.Marshal(tags)
	return string(raw)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return normalizeTags(tags)
}

func encodeEntities(entities map[string]string) string {
	if entities == nil {
		entities = map[string]string{}
	}
	raw, _ := json.Marshal(entities)
	return string(raw)
}

func decodeEntities(raw string) map[string]string {
	entities := map[string]string{}
	if raw == "" {
		return entities
	}
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return map[string]string{}
	}
	return entities
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if cleaned := strings.TrimSpace(line); cleaned != "" {
			return cleaned
		}
	}
	return strings.TrimSpace(content)
}

func normalizeTitle(value string) string {
	return strings.TrimSpace(value)
}

// generateTitle derives a display title when the caller supplied none:
// analysis title, then summary, then the first content line, capped at 80.
func generateTitle(analysis ai.Analysis, content string) string {
	candidate := strings.TrimSpace(analysis.Title)
	if candidate == "" {
		candidate = strings.TrimSpace(analysis.Summary)
	}
	if candidate == "" {
		candidate = firstNonEmptyLine(content)
	}
	if candidate == "" {
		return ""
	}
	runes := []rune(candidate)
	if len(runes) > 80 {
		candidate = string(runes[:77]) + "..."
	}
	return candidate
}

// buildShortTitle picks the first usable short-title candidate. With
// preferTitle the explicit title wins over the analysis suggestion.
func buildShortTitle(analysis *ai.Analysis, content, title string, preferTitle bool) string {
	var candidates []string
	if preferTitle && title != "" {
		candidates = append(candidates, title)
	}
	if analysis != nil {
		if analysis.ShortTitle != "" {
			candidates = append(candidates, analysis.ShortTitle)
		}
		if !preferTitle && title != "" {
			candidates = append(candidates, title)
		}
		if analysis.Title != "" {
			candidates = append(candidates, analysis.Title)
		}
		if analysis.Summary != "" {
			candidates = append(candidates, analysis.Summary)
		}
	} else if !preferTitle && title != "" {
		candidates = append(candidates, title)
	}
	if len(candidates) == 0 && title != "" {
		candidates = append(candidates, title)
	}
	if line := firstNonEmptyLine(content); line != "" {
		candidates = append(candidates, line)
	}
	for _, candidate := range candidates {
		if normalized := ai.NormalizeShortTitle(candidate); normalized != "" {
			return normalized
		}
	}
	return ""
}

// buildEmbeddingSource assembles the text sent to the embedding model. Inputs
// must already be anonymized.
func buildEmbeddingSource(content, summary string, tags []string, title string) string {
	parts := []string{content}
	if title != "" {
		parts = append(parts, "Title: "+title)
	}
	if summary != "" {
		parts = append(parts, "Summary: "+summary)
	}
	if normalized := normalizeTags(tags); len(normalized) > 0 {
		parts = append(parts, "Tags: "+strings.Join(normalized, ", "))
	}
	return strings.Join(parts, "\n")
}

func selectCategory(allowed []string, override, analyzed string) string {
	overrideKey := strings.ToLower(strings.TrimSpace(override))
	if containsString(allowed, overrideKey) {
		return overrideKey
	}
	analyzedKey := strings.ToLower(strings.TrimSpace(analyzed))
	if containsString(allowed, analyzedKey) {
		return analyzedKey
	}
	if containsString(allowed, "idea") {
		return "idea"
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return "idea"
}

func containsString(items []string, value string) bool {
	if value == "" {
		return false
	}
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}

// parseDate accepts YYYY-MM-DD; anything else is treated as unset.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil
	}
	return &t
}

// parseDateEnd returns an exclusive upper bound: the start of the next day.
func parseDateEnd(value string) *time.Time {
	t := parseDate(value)
	if t == nil {
		return nil
	}
	end := t.AddDate(0, 0, 1)
	return &end
}

// extractKeywords tokenizes text into up to limit lowercase keywords, with a
// CJK bigram fallback for scripts without word separators.
func extractKeywords(text string, limit int) []string {
	if text == "" {
		return nil
	}
	tokens := wordTokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	if len(tokens) < limit {
		for _, block := range cjkTokenPattern.FindAllString(text, -1) {
			if len(tokens) >= limit {
				break
			}
			runes := []rune(block)
			if len(runes) <= 4 {
				tokens = append(tokens, block)
				continue
			}
			for i := 0; i < len(runes)-1 && len(tokens) < limit; i++ {
				tokens = append(tokens, string(runes[i:i+2]))
			}
		}
	}
	if len(tokens) == 0 {
		if cleaned := strings.Join(strings.Fields(text), " "); cleaned != "" {
			tokens = append(tokens, cleaned)
		}
	}
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}

func dedupeKeywords(items []string, limit int) []string {
	var deduped []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		cleaned := strings.TrimSpace(item)
		if cleaned == "" {
			continue
		}
		lowered := strings.ToLower(cleaned)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		deduped = append(deduped, cleaned)
		if len(deduped) >= limit {
			break
		}
	}
	return deduped
}

// relatedKeywords collects search tokens describing a note: its tags, titles,
// summary, and (when those are thin) the first content line.
func relatedKeywords(note *model.Note, content string) []string {
	var tokens []string
	tokens = append(tokens, decodeTags(note.Tags)...)
	tokens = append(tokens, extractKeywords(note.Title, 4)...)
	tokens = append(tokens, extractKeywords(note.ShortTitle, 4)...)
	tokens = append(tokens, extractKeywords(note.Summary, 6)...)
	if len(tokens) < 6 {
		tokens = append(tokens, extractKeywords(firstNonEmptyLine(content), 6)...)
	}
	return dedupeKeywords(tokens, relatedKeywordLimit)
}
