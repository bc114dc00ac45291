package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/crypto"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// NoteService implements the note lifecycle: analysis, encryption at rest,
// listing, hybrid search, and the attachment/share cascades.
type NoteService struct {
	notes       repo.NoteRepository
	attachments repo.AttachmentRepository
	shares      repo.ShareRepository
	users       *UserService
	analyzer    ai.Analyzer
	files       *FileStore
	threshold   float64
	log         *zap.SugaredLogger
}

// NewNoteService creates a NoteService. threshold is the minimum cosine
// similarity for a semantic match.
func NewNoteService(
	notes repo.NoteRepository,
	attachments repo.AttachmentRepository,
	shares repo.ShareRepository,
	users *UserService,
	analyzer ai.Analyzer,
	files *FileStore,
	threshold float64,
	log *zap.SugaredLogger,
) *NoteService {
	return &NoteService{
		notes:       notes,
		attachments: attachments,
		shares:      shares,
		users:       users,
		analyzer:    analyzer,
		files:       files,
		threshold:   threshold,
		log:         log,
	}
}

// SearchInfo explains why a note matched a search.
type SearchInfo struct {
	MatchType       string   `json:"match_type"`
	MatchedKeywords []string `json:"matched_keywords"`
	Similarity      float64  `json:"similarity"`
	Score           float64  `json:"score"`
}

// NoteView is a note prepared for output: decrypted content (when requested)
// and decoded metadata.
type NoteView struct {
	Note     *model.Note
	Content  string
	Tags     []string
	Entities map[string]string
	Search   *SearchInfo
}

// CreateNoteInput is the payload for Create. Only Content is required.
type CreateNoteInput struct {
	Content  string
	Title    string
	Category string
	Folder   string
}

// UpdateNoteInput is the payload for Update. Nil pointers leave fields
// untouched; a nil Content with only flag fields set skips re-encryption and
// analysis entirely.
type UpdateNoteInput struct {
	Content        *string
	Title          *string
	ShortTitle     *string
	Category       *string
	Folder         *string
	Tags           *[]string
	Completed      *bool
	PinnedGlobal   *bool
	PinnedCategory *bool
	Reanalyze      bool
}

// ListNotesInput selects and pages notes.
type ListNotesInput struct {
	Page             int
	PageSize         int
	Category         string
	Folder           string
	Tag              string
	Query            string
	TimeStart        string
	TimeEnd          string
	IncludeContent   bool
	IncludeCompleted bool
}

func (s *NoteService) contentKey(user *model.User) ([]byte, error) {
	return crypto.DeriveKey(user.PasswordHash, user.Salt)
}

// decrypt opens a note body. A failed tag check means the row is corrupt (or
// the key wrong), which is unrecoverable for this note.
func (s *NoteService) decrypt(note *model.Note, key []byte) (string, error) {
	plain, err := crypto.Decrypt(note.ContentCipher, note.ContentNonce, key)
	if err != nil {
		return "", fmt.Errorf("%w: note %d", apperr.ErrIntegrity, note.ID)
	}
	return string(plain), nil
}

func (s *NoteService) view(note *model.Note, key []byte, search *SearchInfo, includeContent bool) (*NoteView, error) {
	v := &NoteView{
		Note:     note,
		Tags:     decodeTags(note.Tags),
		Entities: decodeEntities(note.Entities),
		Search:   search,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if includeContent {
		content, err := s.decrypt(note, key)
		if err != nil {
			return nil, err
		}
		v.Content = content
	}
	return v, nil
}

// analyze runs the provider when allowed and falls back to the heuristic on
// any failure. It never returns an error: a note write must not fail because
// the provider is down.
func (s *NoteService) analyze(ctx context.Context, useAI bool, anonymized string, allowed []string) ai.Analysis {
	if useAI {
		analysis, err := s.analyzer.Analyze(ctx, anonymized, allowed)
		if err == nil {
			return analysis
		}
		s.log.Warnw("analysis fell back to heuristic", "error", err)
	}
	return ai.HeuristicAnalyze(anonymized, allowed)
}

// embed returns nil when embeddings are unavailable; semantic ranking simply
// degrades to keyword matching.
func (s *NoteService) embed(ctx context.Context, useAI bool, source string) []float64 {
	if !useAI || source == "" {
		return nil
	}
	vec, err := s.analyzer.Embed(ctx, source)
	if err != nil {
		s.log.Warnw("embedding unavailable", "error", err)
		return nil
	}
	return vec
}

func encodeEmbedding(vec []float64) string {
	if len(vec) == 0 {
		return ""
	}
	raw, _ := json.Marshal(vec)
	return string(raw)
}

// Create analyzes, encrypts and stores a new note.
func (s *NoteService) Create(ctx context.Context, user *model.User, in CreateNoteInput) (*NoteView, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}

	anonymized, mapping := ai.Anonymize(in.Content)
	allowed := s.users.AllowedCategoryKeys(user)
	useAI := s.users.AIEnabledFor(user)

	analysisAnon := s.analyze(ctx, useAI, anonymized, allowed)
	analysis := ai.RestoreAnalysis(analysisAnon, mapping)

	title := normalizeTitle(in.Title)
	hadTitle := title != ""
	if !hadTitle {
		title = generateTitle(analysis, in.Content)
	}
	shortTitle := buildShortTitle(&analysis, in.Content, title, hadTitle)

	overrideKey := strings.ToLower(strings.TrimSpace(in.Category))
	var category string
	switch {
	case containsString(allowed, overrideKey):
		category = overrideKey
	case !useAI:
		// without a provider the category stays user-driven
		if len(allowed) > 0 {
			category = allowed[0]
		} else {
			category = "idea"
		}
	default:
		category = selectCategory(allowed, "", analysis.Category)
	}

	tags := normalizeTags(analysis.Tags)
	summary := analysis.Summary
	if summary == "" {
		runes := []rune(in.Content)
		if len(runes) > 120 {
			runes = runes[:120]
		}
		summary = string(runes)
	}
	sensitivity := analysis.Sensitivity
	if sensitivity == "" {
		sensitivity = "low"
		if ai.DetectSensitive(in.Content) {
			sensitivity = "high"
		}
	}

	var embedding string
	if useAI {
		titleSource := analysisAnon.Title
		if titleSource == "" && hadTitle {
			titleSource, _ = ai.Anonymize(title)
		}
		source := buildEmbeddingSource(anonymized, analysisAnon.Summary, analysisAnon.Tags, titleSource)
		embedding = encodeEmbedding(s.embed(ctx, useAI, source))
	}

	key, err := s.contentKey(user)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := crypto.Encrypt([]byte(in.Content), key)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		UserID:        user.ID,
		ContentCipher: ciphertext,
		ContentNonce:  nonce,
		Title:         title,
		ShortTitle:    shortTitle,
		Folder:        strings.TrimSpace(in.Folder),
		Category:      category,
		Tags:          encodeTags(tags),
		Entities:      encodeEntities(analysis.Entities),
		Summary:       summary,
		Sensitivity:   sensitivity,
		Embedding:     embedding,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	if err := s.syncAttachments(ctx, user, note, in.Content); err != nil {
		return nil, err
	}
	return s.view(note, key, nil, true)
}

// Get returns one owned note with decrypted content.
func (s *NoteService) Get(ctx context.Context, user *model.User, id int64) (*NoteView, error) {
	note, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return nil, err
	}
	return s.view(note, key, nil, true)
}

func (s *NoteService) getOwned(ctx context.Context, user *model.User, id int64) (*model.Note, error) {
	note, err := s.notes.GetByID(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: note", apperr.ErrNotFound)
		}
		return nil, err
	}
	return note, nil
}

// Update applies a partial note update. Flag-only updates (completed, pins)
// leave content, analysis and the embedding untouched.
func (s *NoteService) Update(ctx context.Context, user *model.User, id int64, in UpdateNoteInput) (*NoteView, error) {
	note, err := s.getOwned(ctx, user, id)
	if err != nil {
		return nil, err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return nil, err
	}

	if in.Content == nil {
		if in.Completed == nil && in.PinnedGlobal == nil && in.PinnedCategory == nil {
			return nil, fmt.Errorf("%w: missing content", apperr.ErrValidation)
		}
		s.applyFlags(note, in)
		if err := s.notes.Save(ctx, note); err != nil {
			return nil, err
		}
		return s.view(note, key, nil, true)
	}

	content := *in.Content
	anonymized, mapping := ai.Anonymize(content)
	allowed := s.users.AllowedCategoryKeys(user)
	useAI := s.users.AIEnabledFor(user)

	var analysisAnon, analysis ai.Analysis
	if in.Reanalyze {
		analysisAnon = s.analyze(ctx, useAI, anonymized, allowed)
		analysis = ai.RestoreAnalysis(analysisAnon, mapping)
	}

	if in.Title != nil {
		note.Title = normalizeTitle(*in.Title)
	} else if note.Title == "" {
		note.Title = generateTitle(analysis, content)
	}
	if shortTitle := buildShortTitle(&analysis, content, note.Title, in.Title != nil); shortTitle != "" {
		note.ShortTitle = shortTitle
	}

	if in.Reanalyze {
		if analyzed := strings.ToLower(strings.TrimSpace(analysis.Category)); containsString(allowed, analyzed) {
			note.Category = analyzed
		}
		tags := normalizeTags(analysis.Tags)
		if len(tags) == 0 {
			tags = decodeTags(note.Tags)
		}
		note.Tags = encodeTags(tags)
		if analysis.Summary != "" {
			note.Summary = analysis.Summary
		}
		if len(analysis.Entities) > 0 {
			note.Entities = encodeEntities(analysis.Entities)
		}
		if analysis.Sensitivity != "" {
			note.Sensitivity = analysis.Sensitivity
		}
		source := buildEmbeddingSource(anonymized, analysisAnon.Summary, analysisAnon.Tags, analysisAnon.Title)
		if embedding := encodeEmbedding(s.embed(ctx, useAI, source)); embedding != "" {
			note.Embedding = embedding
		}
	}

	if in.ShortTitle != nil {
		note.ShortTitle = ai.NormalizeShortTitle(*in.ShortTitle)
	}
	if in.Category != nil {
		if categoryKey := strings.ToLower(strings.TrimSpace(*in.Category)); containsString(allowed, categoryKey) {
			note.Category = categoryKey
		}
	}
	if in.Folder != nil {
		note.Folder = strings.TrimSpace(*in.Folder)
	}
	if in.Tags != nil {
		note.Tags = encodeTags(normalizeTags(*in.Tags))
	}
	s.applyFlags(note, in)

	ciphertext, nonce, err := crypto.Encrypt([]byte(content), key)
	if err != nil {
		return nil, err
	}
	note.ContentCipher = ciphertext
	note.ContentNonce = nonce

	if err := s.notes.Save(ctx, note); err != nil {
		return nil, err
	}
	if err := s.syncAttachments(ctx, user, note, content); err != nil {
		return nil, err
	}
	return s.view(note, key, nil, true)
}

func (s *NoteService) applyFlags(note *model.Note, in UpdateNoteInput) {
	now := time.Now()
	if in.Completed != nil {
		note.Completed = *in.Completed
	}
	if in.PinnedGlobal != nil {
		note.PinnedGlobal = *in.PinnedGlobal
		if *in.PinnedGlobal {
			note.PinnedAt = &now
		} else {
			note.PinnedAt = nil
		}
	}
	if in.PinnedCategory != nil {
		note.PinnedCategory = *in.PinnedCategory
		// pinned_at follows the global flag when both change at once
		if in.PinnedGlobal == nil {
			if *in.PinnedCategory {
				note.PinnedAt = &now
			} else {
				note.PinnedAt = nil
			}
		}
	}
}

// Delete removes a note, its share tokens, its link rows, and any attachment
// that no other note references (files included). Attachments still linked
// elsewhere are re-homed instead.
func (s *NoteService) Delete(ctx context.Context, user *model.User, id int64) error {
	note, err := s.getOwned(ctx, user, id)
	if err != nil {
		return err
	}

	linked, err := s.attachments.LinkedAttachmentIDs(ctx, note.ID)
	if err != nil {
		return err
	}
	direct, _, err := s.attachments.List(ctx, user.ID, &note.ID, -1, 0)
	if err != nil {
		return err
	}

	candidates := make(map[int64]struct{}, len(linked)+len(direct))
	for _, aid := range linked {
		candidates[aid] = struct{}{}
	}
	for _, a := range direct {
		candidates[a.ID] = struct{}{}
	}

	if err := s.attachments.DeleteLinksForNote(ctx, note.ID); err != nil {
		return err
	}

	for aid := range candidates {
		a, err := s.attachments.GetOwned(ctx, user.ID, aid)
		if err != nil {
			continue
		}
		others, err := s.attachments.LinkedNoteIDs(ctx, a.ID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			if a.NoteID != nil && *a.NoteID == note.ID {
				a.NoteID = &others[0]
				if err := s.attachments.Save(ctx, a); err != nil {
					return err
				}
			}
			continue
		}
		if err := s.files.Remove(a.UserID, a.StoredName); err != nil {
			s.log.Warnw("failed to remove attachment file", "stored_name", a.StoredName, "error", err)
		}
		if err := s.attachments.Delete(ctx, a.ID); err != nil {
			return err
		}
	}

	if err := s.shares.DeleteForNote(ctx, note.ID); err != nil {
		return err
	}
	deleted, err := s.notes.Delete(ctx, user.ID, note.ID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return fmt.Errorf("%w: note", apperr.ErrNotFound)
	}
	return nil
}

// syncAttachments reconciles note_attachments link rows with the attachment
// references present in the note content.
func (s *NoteService) syncAttachments(ctx context.Context, user *model.User, note *model.Note, content string) error {
	desired, err := s.attachments.OwnedIDs(ctx, user.ID, extractAttachmentIDs(content))
	if err != nil {
		return err
	}
	existing, err := s.attachments.LinkedAttachmentIDs(ctx, note.ID)
	if err != nil {
		return err
	}

	desiredSet := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}
	existingSet := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	var toRemove []int64
	for _, id := range existing {
		if _, ok := desiredSet[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	if err := s.attachments.Unlink(ctx, note.ID, toRemove); err != nil {
		return err
	}
	for _, id := range toRemove {
		a, err := s.attachments.GetOwned(ctx, user.ID, id)
		if err != nil {
			continue
		}
		if a.NoteID == nil || *a.NoteID != note.ID {
			continue
		}
		// re-home to any remaining linked note
		others, err := s.attachments.LinkedNoteIDs(ctx, a.ID)
		if err != nil {
			return err
		}
		if len(others) > 0 {
			a.NoteID = &others[0]
		} else {
			a.NoteID = nil
		}
		if err := s.attachments.Save(ctx, a); err != nil {
			return err
		}
	}

	for _, id := range desired {
		if _, ok := existingSet[id]; ok {
			continue
		}
		if err := s.attachments.Link(ctx, note.ID, id); err != nil {
			return err
		}
		a, err := s.attachments.GetOwned(ctx, user.ID, id)
		if err != nil {
			continue
		}
		if a.NoteID == nil {
			noteID := note.ID
			a.NoteID = &noteID
			if err := s.attachments.Save(ctx, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *NoteService) buildFilter(in ListNotesInput) repo.NoteFilter {
	return repo.NoteFilter{
		Category:         strings.TrimSpace(in.Category),
		Folder:           strings.TrimSpace(in.Folder),
		Tag:              strings.TrimSpace(in.Tag),
		IncludeCompleted: in.IncludeCompleted,
		TimeStart:        parseDate(in.TimeStart),
		TimeEnd:          parseDateEnd(in.TimeEnd),
	}
}

// List pages the user's notes. With a free-text query it switches to hybrid
// keyword/semantic ranking over all matching notes.
func (s *NoteService) List(ctx context.Context, user *model.User, in ListNotesInput) ([]NoteView, int64, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 {
		in.PageSize = 20
	}
	filter := s.buildFilter(in)

	if query := strings.TrimSpace(in.Query); query != "" {
		return s.searchRanked(ctx, user, query, filter, in.PageSize, (in.Page-1)*in.PageSize, in.IncludeContent)
	}

	notes, total, err := s.notes.List(ctx, user.ID, filter, in.PageSize, (in.Page-1)*in.PageSize, filter.Category != "")
	if err != nil {
		return nil, 0, err
	}

	var key []byte
	if in.IncludeContent {
		if key, err = s.contentKey(user); err != nil {
			return nil, 0, err
		}
	}
	views := make([]NoteView, 0, len(notes))
	for i := range notes {
		v, err := s.view(&notes[i], key, nil, in.IncludeContent)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *v)
	}
	return views, total, nil
}

// TimelineBucket is one group in the creation-time histogram.
type TimelineBucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Timeline buckets note creation times by month or day, newest bucket first.
func (s *NoteService) Timeline(ctx context.Context, user *model.User, group string, in ListNotesInput) ([]TimelineBucket, string, error) {
	group = strings.ToLower(strings.TrimSpace(group))
	layout := "2006-01"
	switch group {
	case "", "month":
		group = "month"
	case "day":
		layout = "2006-01-02"
	default:
		return nil, "", fmt.Errorf("%w: invalid group", apperr.ErrValidation)
	}

	times, err := s.notes.CreatedTimes(ctx, user.ID, s.buildFilter(in))
	if err != nil {
		return nil, "", err
	}
	counts := make(map[string]int)
	for _, t := range times {
		counts[t.Format(layout)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	buckets := make([]TimelineBucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, TimelineBucket{Key: k, Count: counts[k]})
	}
	return buckets, group, nil
}

// Random returns one random note, decrypted.
func (s *NoteService) Random(ctx context.Context, user *model.User, includeCompleted bool) (*NoteView, error) {
	note, err := s.notes.Random(ctx, user.ID, includeCompleted)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no notes available", apperr.ErrNotFound)
		}
		return nil, err
	}
	key, err := s.contentKey(user)
	if err != nil {
		return nil, err
	}
	return s.view(note, key, nil, true)
}

// RebuildEmbeddingsInput drives one batch of the resumable rebuild loop.
type RebuildEmbeddingsInput struct {
	Cursor    int64
	BatchSize int
	Reanalyze bool
}

// RebuildEmbeddingsResult reports one processed batch. NextCursor is set when
// another full batch may remain.
type RebuildEmbeddingsResult struct {
	Total      int64   `json:"total"`
	Updated    int     `json:"updated"`
	Failed     int     `json:"failed"`
	Failures   []int64 `json:"failures"`
	NextCursor *int64  `json:"next_cursor"`
}

// RebuildEmbeddings re-embeds (and optionally re-analyzes) one batch of the
// user's notes, newest first. Per-note failures are recorded, not fatal.
func (s *NoteService) RebuildEmbeddings(ctx context.Context, user *model.User, in RebuildEmbeddingsInput) (RebuildEmbeddingsResult, error) {
	res := RebuildEmbeddingsResult{Failures: []int64{}}
	useAI := s.users.AIEnabledFor(user)
	if !useAI {
		return res, fmt.Errorf("%w: AI is disabled; embeddings are unavailable", apperr.ErrValidation)
	}

	total, err := s.notes.Count(ctx, user.ID)
	if err != nil {
		return res, err
	}
	res.Total = total

	notes, err := s.notes.ListBatch(ctx, user.ID, in.Cursor, in.BatchSize)
	if err != nil {
		return res, err
	}
	allowed := s.users.AllowedCategoryKeys(user)
	key, err := s.contentKey(user)
	if err != nil {
		return res, err
	}

	for i := range notes {
		note := &notes[i]
		content, err := s.decrypt(note, key)
		if err != nil {
			res.Failed++
			res.Failures = append(res.Failures, note.ID)
			continue
		}
		anonymized, mapping := ai.Anonymize(content)

		var analysisAnon, analysis ai.Analysis
		if in.Reanalyze {
			analysisAnon = s.analyze(ctx, useAI, anonymized, allowed)
			analysis = ai.RestoreAnalysis(analysisAnon, mapping)
			if analyzed := strings.ToLower(strings.TrimSpace(analysis.Category)); containsString(allowed, analyzed) {
				note.Category = analyzed
			}
			tags := normalizeTags(analysis.Tags)
			if len(tags) == 0 {
				tags = decodeTags(note.Tags)
			}
			note.Tags = encodeTags(tags)
			if analysis.Summary != "" {
				note.Summary = analysis.Summary
			}
			if len(analysis.Entities) > 0 {
				note.Entities = encodeEntities(analysis.Entities)
			}
			if analysis.Sensitivity != "" {
				note.Sensitivity = analysis.Sensitivity
			}
		}

		var analysisPtr *ai.Analysis
		if in.Reanalyze {
			analysisPtr = &analysis
		}
		if shortTitle := buildShortTitle(analysisPtr, content, note.Title, !in.Reanalyze); shortTitle != "" {
			if in.Reanalyze || note.ShortTitle == "" {
				note.ShortTitle = shortTitle
			}
		}

		summarySource := analysisAnon.Summary
		tagsSource := analysisAnon.Tags
		titleSource := analysisAnon.Title
		if summarySource == "" {
			summarySource, _ = ai.Anonymize(note.Summary)
		}
		if len(tagsSource) == 0 {
			for _, tag := range decodeTags(note.Tags) {
				anonTag, _ := ai.Anonymize(tag)
				tagsSource = append(tagsSource, anonTag)
			}
		}
		if titleSource == "" {
			titleSource, _ = ai.Anonymize(note.Title)
		}

		source := buildEmbeddingSource(anonymized, summarySource, tagsSource, titleSource)
		vec := s.embed(ctx, useAI, source)
		if len(vec) == 0 {
			res.Failed++
			res.Failures = append(res.Failures, note.ID)
			continue
		}
		note.Embedding = encodeEmbedding(vec)
		if err := s.notes.Save(ctx, note); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, note.ID)
			continue
		}
		res.Updated++
	}

	if in.BatchSize > 0 && len(notes) == in.BatchSize {
		last := notes[len(notes)-1].ID
		res.NextCursor = &last
	}
	return res, nil
}
