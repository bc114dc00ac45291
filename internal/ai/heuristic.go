package ai

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ShortTitleMaxLen caps the short title shown in compact note lists.
const ShortTitleMaxLen = 32

// DefaultCategories are used when the user has not customized the taxonomy.
var DefaultCategories = []string{"credential", "work", "idea", "todo"}

var (
	credentialHintPattern = regexp.MustCompile(`(token|password|passwd|pwd|secret|ssh|ip|credential)`)
	todoHintPattern       = regexp.MustCompile(`(todo|to-do|task|next|remind|follow up|deadline)`)
	workHintPattern       = regexp.MustCompile(`(project|meeting|review|weekly|progress|work)`)
	wordPattern           = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]{2,}`)
	whitespacePattern     = regexp.MustCompile(`\s+`)
)

// NormalizeCategories lowercases, trims and dedupes a category list, falling
// back to the defaults when nothing usable remains.
func NormalizeCategories(categories []string) []string {
	if len(categories) == 0 {
		return DefaultCategories
	}
	var normalized []string
	seen := make(map[string]struct{}, len(categories))
	for _, item := range categories {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, key)
	}
	if len(normalized) == 0 {
		return DefaultCategories
	}
	return normalized
}

func heuristicCategory(text string, categories []string) string {
	lowered := strings.ToLower(text)
	var fallback string
	switch {
	case credentialHintPattern.MatchString(lowered):
		fallback = "credential"
	case todoHintPattern.MatchString(lowered):
		fallback = "todo"
	case workHintPattern.MatchString(lowered):
		fallback = "work"
	default:
		fallback = "idea"
	}
	if len(categories) == 0 {
		return fallback
	}
	options := NormalizeCategories(categories)
	for _, option := range options {
		if option == fallback {
			return fallback
		}
	}
	for _, option := range options {
		if strings.Contains(lowered, option) {
			return option
		}
	}
	return options[0]
}

func heuristicTags(text, category string) []string {
	lowered := strings.ToLower(text)
	tags := map[string]struct{}{category: {}}
	for _, hint := range []string{"github", "paper", "server"} {
		if strings.Contains(lowered, hint) {
			tags[hint] = struct{}{}
		}
	}
	if strings.Contains(lowered, "token") || strings.Contains(lowered, "password") {
		tags["secret"] = struct{}{}
	}
	words := wordPattern.FindAllString(text, 6)
	for _, word := range words {
		tags[strings.ToLower(word)] = struct{}{}
	}
	sorted := make([]string, 0, len(tags))
	for tag := range tags {
		sorted = append(sorted, tag)
	}
	sort.Strings(sorted)
	if len(sorted) > 6 {
		sorted = sorted[:6]
	}
	return sorted
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

func truncateRunes(text string, max int, ellipsis bool) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if ellipsis {
		return string(runes[:max-3]) + "..."
	}
	return string(runes[:max])
}

func heuristicSummary(text string) string {
	return truncateRunes(collapseWhitespace(text), 120, true)
}

func heuristicTitle(text string) string {
	return truncateRunes(collapseWhitespace(text), 60, true)
}

// NormalizeShortTitle trims a candidate to the short-title limit, cutting at
// a word boundary when one exists inside the limit.
func NormalizeShortTitle(text string) string {
	cleaned := collapseWhitespace(text)
	if cleaned == "" {
		return ""
	}
	runes := []rune(cleaned)
	if len(runes) <= ShortTitleMaxLen {
		return cleaned
	}
	trimmed := strings.TrimRight(string(runes[:ShortTitleMaxLen]), " ")
	if idx := strings.LastIndex(trimmed, " "); idx > 0 {
		if head := strings.TrimRight(trimmed[:idx], " "); head != "" {
			return head
		}
	}
	return trimmed
}

func heuristicShortTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if cleaned := strings.TrimSpace(line); cleaned != "" {
			return NormalizeShortTitle(cleaned)
		}
	}
	return NormalizeShortTitle(text)
}

// HeuristicAnalyze derives note metadata with rules alone. It is the fallback
// when the provider is disabled or errors, so a note write can never fail on
// analysis.
func HeuristicAnalyze(text string, categories []string) Analysis {
	category := heuristicCategory(text, NormalizeCategories(categories))
	sensitivity := "low"
	if DetectSensitive(text) {
		sensitivity = "high"
	}
	return Analysis{
		Title:       heuristicTitle(text),
		ShortTitle:  heuristicShortTitle(text),
		Category:    category,
		Tags:        heuristicTags(text, category),
		Summary:     heuristicSummary(text),
		Entities:    ExtractEntities(text),
		Sensitivity: sensitivity,
	}
}

// FallbackSummary is the digest produced without a provider.
func FallbackSummary(notes []string, days int) string {
	if len(notes) == 0 {
		return "No notes found for the selected period."
	}
	joined := strings.Join(notes, "\n")
	return fmt.Sprintf("Summary (%d days): %s", days, truncateRunes(joined, 403, true))
}

// FallbackAnswer is the answer produced without a provider.
func FallbackAnswer(notes []string) string {
	if len(notes) == 0 {
		return "No matching notes found."
	}
	return truncateRunes(notes[0], 200, false)
}

// FallbackSearchMeta treats the whole query as both semantic query and the
// single keyword.
func FallbackSearchMeta(query string) SearchMeta {
	return SearchMeta{SemanticQuery: query, Keywords: []string{query}}
}
