package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/model"
)

func TestNoteService_SearchMatchesSummaryOnly(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	created, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "Team sync agenda for Monday"})
	assert.NoError(t, err)
	_, err = env.notes.Create(ctx, user, CreateNoteInput{Content: "Unrelated grocery list"})
	assert.NoError(t, err)

	// the keyword lives only in the summary, not in the content
	assert.NoError(t, env.db.Model(&model.Note{}).
		Where("id = ?", created.Note.ID).
		Update("summary", "quarterly zebra review").Error)

	views, total, err := env.notes.Search(ctx, user, "zebra", 10, false)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	if assert.Len(t, views, 1) {
		assert.Equal(t, created.Note.ID, views[0].Note.ID)
		assert.Equal(t, "keyword", views[0].Search.MatchType)
		assert.Equal(t, []string{"zebra"}, views[0].Search.MatchedKeywords)
	}
}

func TestNoteService_SearchRanksDirectMatchFirst(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	_, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "deployment checklist"})
	assert.NoError(t, err)
	direct, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "deploy now"})
	assert.NoError(t, err)

	views, _, err := env.notes.Search(ctx, user, "deploy", 10, false)
	assert.NoError(t, err)
	if assert.Len(t, views, 2) {
		// both contain the substring; ranking is stable so either order works,
		// but every hit must report the query as a matched keyword
		for _, v := range views {
			assert.Contains(t, v.Search.MatchedKeywords, "deploy")
		}
		assert.NotNil(t, direct)
	}
}

func TestNoteService_SearchSemanticWithProvider(t *testing.T) {
	env := newTestEnv(t, true)
	user := registerUser(t, env, "alice")
	enableAI(t, env, user)
	ctx := context.Background()

	env.analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(ai.Analysis{}, errors.New("provider down"))
	env.analyzer.On("Embed", mock.Anything, mock.Anything).
		Return([]float64{1, 0, 0}, nil)
	env.analyzer.On("ParseSearchQuery", mock.Anything, mock.Anything).
		Return(ai.SearchMeta{SemanticQuery: "container orchestration", Keywords: []string{"kubernetes"}}, nil)

	created, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "Cluster upgrade plan"})
	assert.NoError(t, err)

	views, total, err := env.notes.Search(ctx, user, "kubernetes", 10, false)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	if assert.Len(t, views, 1) {
		assert.Equal(t, created.Note.ID, views[0].Note.ID)
		// no keyword hit, identical embeddings: pure semantic match
		assert.Equal(t, "semantic", views[0].Search.MatchType)
		assert.InDelta(t, 1.0, views[0].Search.Similarity, 1e-9)
	}
}

func TestNoteService_SearchParseFallsBackToRawQuery(t *testing.T) {
	env := newTestEnv(t, true)
	user := registerUser(t, env, "alice")
	enableAI(t, env, user)
	ctx := context.Background()

	env.analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(ai.Analysis{}, errors.New("provider down"))
	env.analyzer.On("Embed", mock.Anything, mock.Anything).
		Return(nil, errors.New("provider down"))
	env.analyzer.On("ParseSearchQuery", mock.Anything, mock.Anything).
		Return(ai.SearchMeta{}, errors.New("provider down"))

	created, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "rotate the backup key"})
	assert.NoError(t, err)

	views, _, err := env.notes.Search(ctx, user, "backup", 10, false)
	assert.NoError(t, err)
	if assert.Len(t, views, 1) {
		assert.Equal(t, created.Note.ID, views[0].Note.ID)
		assert.Equal(t, "keyword", views[0].Search.MatchType)
	}
}

func TestNoteService_Related(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	base, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "garden watering schedule"})
	assert.NoError(t, err)
	neighbor, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "garden fence repair"})
	assert.NoError(t, err)
	_, err = env.notes.Create(ctx, user, CreateNoteInput{Content: "tax filing deadline"})
	assert.NoError(t, err)

	views, total, mode, err := env.notes.Related(ctx, user, base.Note.ID, 6, false)
	assert.NoError(t, err)
	assert.Equal(t, "keyword", mode)
	assert.GreaterOrEqual(t, total, int64(1))

	found := false
	for _, v := range views {
		assert.NotEqual(t, base.Note.ID, v.Note.ID, "a note is never related to itself")
		if v.Note.ID == neighbor.Note.ID {
			found = true
		}
	}
	assert.True(t, found, "note sharing a keyword should be related")
}

func TestNoteService_AskFallback(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	_, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "Buy milk tomorrow"})
	assert.NoError(t, err)

	answer, matches, err := env.notes.Ask(ctx, user, "milk")
	assert.NoError(t, err)
	assert.Equal(t, "Buy milk tomorrow", answer)
	assert.Len(t, matches, 1)

	answer, matches, err = env.notes.Ask(ctx, user, "nothing-matches-this")
	assert.NoError(t, err)
	assert.Equal(t, "No matching notes found.", answer)
	assert.Empty(t, matches)
}

func TestNoteService_SummarizeFallback(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	summary, err := env.notes.Summarize(ctx, user, 7)
	assert.NoError(t, err)
	assert.Equal(t, "No notes found for the selected period.", summary)

	_, err = env.notes.Create(ctx, user, CreateNoteInput{Content: "Shipped the release"})
	assert.NoError(t, err)

	summary, err = env.notes.Summarize(ctx, user, 7)
	assert.NoError(t, err)
	assert.Contains(t, summary, "Summary (7 days):")
	assert.Contains(t, summary, "Shipped the release")
}

func TestNoteService_SummarizeWithProvider(t *testing.T) {
	env := newTestEnv(t, true)
	user := registerUser(t, env, "alice")
	enableAI(t, env, user)
	ctx := context.Background()

	env.analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(ai.Analysis{}, errors.New("provider down"))
	env.analyzer.On("Embed", mock.Anything, mock.Anything).
		Return(nil, errors.New("provider down"))
	env.analyzer.On("Summarize", mock.Anything, mock.Anything, 7).
		Return("A tidy digest.", nil)

	_, err := env.notes.Create(ctx, user, CreateNoteInput{Content: "Shipped the release"})
	assert.NoError(t, err)

	summary, err := env.notes.Summarize(ctx, user, 7)
	assert.NoError(t, err)
	assert.Equal(t, "A tidy digest.", summary)
}
