package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// noteText is a note with its searchable fields decoded (and content
// decrypted) once, so keyword matching does not redo the work per keyword.
type noteText struct {
	note     *model.Note
	content  string
	tags     []string
	entities map[string]string
}

func (s *NoteService) noteText(note *model.Note, key []byte) noteText {
	nt := noteText{
		note:     note,
		tags:     decodeTags(note.Tags),
		entities: decodeEntities(note.Entities),
	}
	if content, err := s.decrypt(note, key); err == nil {
		nt.content = content
	}
	return nt
}

func (nt noteText) matches(query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(nt.note.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(nt.note.ShortTitle), q) {
		return true
	}
	if strings.Contains(strings.ToLower(nt.content), q) {
		return true
	}
	if strings.Contains(strings.ToLower(nt.note.Summary), q) {
		return true
	}
	for _, tag := range nt.tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	for k, v := range nt.entities {
		if strings.Contains(strings.ToLower(k), q) || strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

func (nt noteText) matchingKeywords(keywords []string) []string {
	var matched []string
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		cleaned := strings.TrimSpace(keyword)
		if cleaned == "" {
			continue
		}
		lowered := strings.ToLower(cleaned)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		if nt.matches(cleaned) {
			matched = append(matched, cleaned)
		}
	}
	return matched
}

// rankedNote pairs a note with its rank key. Keys compare lexicographically:
// direct match, matched keyword count, any text match, similarity, score.
type rankedNote struct {
	key  [5]float64
	nt   noteText
	info SearchInfo
}

func sortRanked(ranked []rankedNote) {
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].key, ranked[j].key
		for k := range a {
			if a[k] != b[k] {
				return a[k] > b[k]
			}
		}
		return false
	})
}

// scoreNote ranks one note against the query. The second return is false when
// the note matches neither by keyword nor semantically.
func (s *NoteService) scoreNote(nt noteText, keywords []string, directQuery string, queryEmbedding []float64) (rankedNote, bool) {
	matched := nt.matchingKeywords(keywords)
	textMatch := len(matched) > 0
	directMatch := false
	if directQuery != "" {
		for _, item := range matched {
			if strings.ToLower(item) == directQuery {
				directMatch = true
				break
			}
		}
	}

	similarity := 0.0
	if len(queryEmbedding) > 0 {
		if noteEmbedding := ai.ParseEmbedding(nt.note.Embedding); noteEmbedding != nil {
			similarity = ai.CosineSimilarity(queryEmbedding, noteEmbedding)
		}
	}

	score := similarity
	if textMatch {
		score += 0.25
	}
	if len(matched) > 1 {
		score += 0.05 * float64(len(matched)-1)
	}
	if directMatch {
		score += 0.35
	}

	semanticMatch := len(queryEmbedding) > 0 && similarity >= s.threshold
	if !textMatch && !semanticMatch {
		return rankedNote{}, false
	}

	matchType := "keyword"
	if !textMatch {
		matchType = "semantic"
	} else if semanticMatch {
		matchType = "keyword+semantic"
	}
	if matched == nil {
		matched = []string{}
	}

	key := [5]float64{0, float64(len(matched)), 0, similarity, score}
	if directMatch {
		key[0] = 1
	}
	if textMatch {
		key[2] = 1
	}
	return rankedNote{
		key: key,
		nt:  nt,
		info: SearchInfo{
			MatchType:       matchType,
			MatchedKeywords: matched,
			Similarity:      similarity,
			Score:           score,
		},
	}, true
}

// parseSearchMeta extracts intent from a query, anonymizing it first and
// restoring placeholders in the parsed result. Provider failure falls back to
// treating the whole query as the single keyword.
func (s *NoteService) parseSearchMeta(ctx context.Context, useAI bool, query string) ai.SearchMeta {
	anonymized, mapping := ai.Anonymize(query)
	meta := ai.FallbackSearchMeta(anonymized)
	if useAI {
		parsed, err := s.analyzer.ParseSearchQuery(ctx, anonymized)
		if err != nil {
			s.log.Warnw("search parse fell back to raw query", "error", err)
		} else {
			meta = parsed
		}
	}
	meta.SemanticQuery = ai.Restore(meta.SemanticQuery, mapping)
	for i, keyword := range meta.Keywords {
		meta.Keywords[i] = ai.Restore(keyword, mapping)
	}
	return meta
}

// mergeTimeFilter narrows f with the time range parsed out of the query.
func mergeTimeFilter(f repo.NoteFilter, meta ai.SearchMeta) repo.NoteFilter {
	if start := parseDate(meta.TimeStart); start != nil {
		if f.TimeStart == nil || start.After(*f.TimeStart) {
			f.TimeStart = start
		}
	}
	if end := parseDateEnd(meta.TimeEnd); end != nil {
		if f.TimeEnd == nil || end.Before(*f.TimeEnd) {
			f.TimeEnd = end
		}
	}
	return f
}

// searchRanked runs the hybrid keyword/semantic search over every note that
// passes the filter and returns one page of ranked results.
func (s *NoteService) searchRanked(ctx context.Context, user *model.User, query string, filter repo.NoteFilter, limit, offset int, includeContent bool) ([]NoteView, int64, error) {
	useAI := s.users.AIEnabledFor(user)
	meta := s.parseSearchMeta(ctx, useAI, query)

	semanticQuery := meta.SemanticQuery
	if semanticQuery == "" {
		semanticQuery = query
	}
	keywords := meta.Keywords
	if len(keywords) == 0 {
		keywords = []string{semanticQuery}
	}
	directQuery := strings.ToLower(strings.TrimSpace(keywords[0]))

	notes, err := s.notes.ListAll(ctx, user.ID, mergeTimeFilter(filter, meta))
	if err != nil {
		return nil, 0, err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return nil, 0, err
	}

	var queryEmbedding []float64
	if useAI {
		anonymizedQuery, _ := ai.Anonymize(semanticQuery)
		queryEmbedding = s.embed(ctx, useAI, anonymizedQuery)
	}

	var ranked []rankedNote
	for i := range notes {
		nt := s.noteText(&notes[i], key)
		if r, ok := s.scoreNote(nt, keywords, directQuery, queryEmbedding); ok {
			ranked = append(ranked, r)
		}
	}
	// with zero keyword hits fall back to pure similarity ordering
	if len(ranked) == 0 && len(queryEmbedding) > 0 {
		for i := range notes {
			noteEmbedding := ai.ParseEmbedding(notes[i].Embedding)
			if noteEmbedding == nil {
				continue
			}
			similarity := ai.CosineSimilarity(queryEmbedding, noteEmbedding)
			ranked = append(ranked, rankedNote{
				key: [5]float64{0, 0, 0, similarity, similarity},
				nt:  s.noteText(&notes[i], key),
				info: SearchInfo{
					MatchType:       "semantic",
					MatchedKeywords: []string{},
					Similarity:      similarity,
					Score:           similarity,
				},
			})
		}
	}
	sortRanked(ranked)

	total := int64(len(ranked))
	if offset >= len(ranked) {
		return []NoteView{}, total, nil
	}
	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	views := make([]NoteView, 0, end-offset)
	for _, r := range ranked[offset:end] {
		info := r.info
		v := NoteView{
			Note:     r.nt.note,
			Tags:     r.nt.tags,
			Entities: r.nt.entities,
			Search:   &info,
		}
		if includeContent {
			v.Content = r.nt.content
		}
		views = append(views, v)
	}
	return views, total, nil
}

// Search ranks notes against a free-text query (the POST /api/notes/search
// operation: first page only, caller-chosen limit).
func (s *NoteService) Search(ctx context.Context, user *model.User, query string, limit int, includeCompleted bool) ([]NoteView, int64, error) {
	if limit < 1 {
		limit = 10
	}
	filter := repo.NoteFilter{IncludeCompleted: includeCompleted}
	return s.searchRanked(ctx, user, query, filter, limit, 0, true)
}

// Related finds notes near the given one by shared keywords and embedding
// similarity. mode reports whether similarity contributed.
func (s *NoteService) Related(ctx context.Context, user *model.User, noteID int64, limit int, includeCompleted bool) ([]NoteView, int64, string, error) {
	if limit < 1 {
		limit = RelatedDefaultLimit
	}
	note, err := s.getOwned(ctx, user, noteID)
	if err != nil {
		return nil, 0, "", err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return nil, 0, "", err
	}
	content, _ := s.decrypt(note, key)

	keywords := relatedKeywords(note, content)
	directQuery := ""
	if len(keywords) > 0 {
		directQuery = strings.ToLower(strings.TrimSpace(keywords[0]))
	}

	var queryEmbedding []float64
	if s.users.AIEnabledFor(user) {
		queryEmbedding = ai.ParseEmbedding(note.Embedding)
	}

	candidates, err := s.notes.ListAll(ctx, user.ID, repo.NoteFilter{IncludeCompleted: includeCompleted})
	if err != nil {
		return nil, 0, "", err
	}

	usedSemantic := false
	var ranked []rankedNote
	for i := range candidates {
		if candidates[i].ID == note.ID {
			continue
		}
		nt := s.noteText(&candidates[i], key)
		r, ok := s.scoreNote(nt, keywords, directQuery, queryEmbedding)
		if !ok {
			continue
		}
		if r.info.MatchType != "keyword" {
			usedSemantic = true
		}
		ranked = append(ranked, r)
	}
	sortRanked(ranked)

	total := int64(len(ranked))
	if limit > len(ranked) {
		limit = len(ranked)
	}
	views := make([]NoteView, 0, limit)
	for _, r := range ranked[:limit] {
		info := r.info
		views = append(views, NoteView{
			Note:     r.nt.note,
			Tags:     r.nt.tags,
			Entities: r.nt.entities,
			Search:   &info,
		})
	}
	mode := "keyword"
	if usedSemantic {
		mode = "semantic"
	}
	return views, total, mode, nil
}

// Ask answers a question grounded on the user's recent notes. Matching is a
// cheap substring scan over summaries and tags; the provider (or fallback)
// produces the answer text.
func (s *NoteService) Ask(ctx context.Context, user *model.User, question string) (string, []NoteView, error) {
	useAI := s.users.AIEnabledFor(user)
	notes, err := s.notes.ListBatch(ctx, user.ID, 0, 50)
	if err != nil {
		return "", nil, err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return "", nil, err
	}

	q := strings.ToLower(strings.TrimSpace(question))
	var matches []NoteView
	var contents []string
	for i := range notes {
		note := &notes[i]
		if !strings.Contains(strings.ToLower(note.Summary), q) &&
			!strings.Contains(strings.ToLower(note.Tags), q) {
			continue
		}
		v, err := s.view(note, key, nil, true)
		if err != nil {
			continue
		}
		matches = append(matches, *v)
		contents = append(contents, v.Content)
	}

	answer := s.answerWithFallback(ctx, useAI, question, contents)
	if len(matches) > 5 {
		matches = matches[:5]
	}
	if matches == nil {
		matches = []NoteView{}
	}
	return answer, matches, nil
}

func (s *NoteService) answerWithFallback(ctx context.Context, useAI bool, question string, contents []string) string {
	if !useAI || len(contents) == 0 {
		return ai.FallbackAnswer(contents)
	}
	mapping := make(map[string]string)
	anonymizedQuestion, questionMapping := ai.Anonymize(question)
	for placeholder, original := range questionMapping {
		mapping[placeholder] = original
	}
	anonymizedContents := make([]string, len(contents))
	for i, content := range contents {
		anonymized, contentMapping := ai.Anonymize(content)
		anonymizedContents[i] = anonymized
		for placeholder, original := range contentMapping {
			mapping[placeholder] = original
		}
	}
	answer, err := s.analyzer.Answer(ctx, anonymizedQuestion, anonymizedContents)
	if err != nil {
		s.log.Warnw("answer fell back to first match", "error", err)
		return ai.FallbackAnswer(contents)
	}
	return ai.Restore(answer, mapping)
}

// Summarize digests the user's notes from the last N days.
func (s *NoteService) Summarize(ctx context.Context, user *model.User, days int) (string, error) {
	if days < 1 {
		days = 7
	}
	useAI := s.users.AIEnabledFor(user)
	cutoff := time.Now().AddDate(0, 0, -days)
	notes, err := s.notes.ListAll(ctx, user.ID, repo.NoteFilter{IncludeCompleted: true, TimeStart: &cutoff})
	if err != nil {
		return "", err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return "", err
	}

	var contents []string
	for i := range notes {
		if content, err := s.decrypt(&notes[i], key); err == nil {
			contents = append(contents, content)
		}
	}
	if !useAI || len(contents) == 0 {
		return ai.FallbackSummary(contents, days), nil
	}

	mapping := make(map[string]string)
	anonymized := make([]string, len(contents))
	for i, content := range contents {
		anon, contentMapping := ai.Anonymize(content)
		anonymized[i] = anon
		for placeholder, original := range contentMapping {
			mapping[placeholder] = original
		}
	}
	summary, err := s.analyzer.Summarize(ctx, anonymized, days)
	if err != nil {
		s.log.Warnw("summary fell back to digest", "error", err)
		return ai.FallbackSummary(contents, days), nil
	}
	return ai.Restore(summary, mapping), nil
}
