package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/Ubastic/notemind/internal/apperr"
)

func sampleTrackerDocument() TrackerDocument {
	return TrackerDocument{Projects: []TrackerProject{
		{
			Name: "Home",
			Tables: []TrackerTable{
				{
					Name:    "Chores",
					Columns: []string{"task", "done"},
					Rows:    [][]string{{"laundry", "yes"}, {"dishes", "no"}},
				},
			},
		},
		{
			Name: "Work",
			Tables: []TrackerTable{
				{
					Name:    "Deadlines",
					Columns: []string{"project", "date"},
					Rows:    [][]string{{"launch", "2026-09-01"}},
				},
			},
		},
	}}
}

func TestTrackerService_GetDefaultsToEmpty(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")

	doc, err := env.tracker.Get(context.Background(), user)
	assert.NoError(t, err)
	assert.NotNil(t, doc.Projects)
	assert.Empty(t, doc.Projects)
}

func TestTrackerService_ReplaceRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	want := sampleTrackerDocument()
	_, err := env.tracker.Replace(ctx, user, want)
	assert.NoError(t, err)

	got, err := env.tracker.Get(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, want, got)

	// a second replace overwrites wholesale
	_, err = env.tracker.Replace(ctx, user, TrackerDocument{})
	assert.NoError(t, err)
	got, err = env.tracker.Get(ctx, user)
	assert.NoError(t, err)
	assert.Empty(t, got.Projects)
}

func TestTrackerService_PerUserDocuments(t *testing.T) {
	env := newTestEnv(t, false)
	alice := registerUser(t, env, "alice")
	bob := registerUser(t, env, "bob")
	ctx := context.Background()

	_, err := env.tracker.Replace(ctx, alice, sampleTrackerDocument())
	assert.NoError(t, err)

	doc, err := env.tracker.Get(ctx, bob)
	assert.NoError(t, err)
	assert.Empty(t, doc.Projects)
}

func TestTrackerService_ExportCSV(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	_, err := env.tracker.Replace(ctx, user, sampleTrackerDocument())
	assert.NoError(t, err)

	data, err := env.tracker.ExportCSV(ctx, user)
	assert.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "project,table,task,done")
	assert.Contains(t, text, "Home,Chores,laundry,yes")
	assert.Contains(t, text, "Work,Deadlines,launch,2026-09-01")
}

func TestTrackerService_ExportJSON(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	_, err := env.tracker.Replace(ctx, user, sampleTrackerDocument())
	assert.NoError(t, err)

	data, err := env.tracker.ExportJSON(ctx, user)
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Home"`)
}

func TestTrackerService_ExportXLSXRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	_, err := env.tracker.Replace(ctx, user, sampleTrackerDocument())
	assert.NoError(t, err)

	data, err := env.tracker.ExportXLSX(ctx, user)
	assert.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	assert.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Len(t, sheets, 2)
	assert.Contains(t, sheets, "Home - Chores")
	assert.Contains(t, sheets, "Work - Deadlines")

	rows, err := f.GetRows("Home - Chores")
	assert.NoError(t, err)
	if assert.Len(t, rows, 3) {
		assert.Equal(t, []string{"task", "done"}, rows[0])
		assert.Equal(t, []string{"laundry", "yes"}, rows[1])
	}
}

func TestTrackerService_ImportXLSX(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	f := excelize.NewFile()
	assert.NoError(t, f.SetSheetName(f.GetSheetName(0), "Budget"))
	assert.NoError(t, f.SetSheetRow("Budget", "A1", &[]string{"item", "cost"}))
	assert.NoError(t, f.SetSheetRow("Budget", "A2", &[]string{"rent", "900"}))
	var buf bytes.Buffer
	assert.NoError(t, f.Write(&buf))
	assert.NoError(t, f.Close())

	doc, err := env.tracker.ImportXLSX(ctx, user, &buf)
	assert.NoError(t, err)
	if assert.Len(t, doc.Projects, 1) {
		assert.Equal(t, "Budget", doc.Projects[0].Name)
		table := doc.Projects[0].Tables[0]
		assert.Equal(t, []string{"item", "cost"}, table.Columns)
		assert.Equal(t, [][]string{{"rent", "900"}}, table.Rows)
	}

	// the imported document replaced whatever was stored
	got, err := env.tracker.Get(ctx, user)
	assert.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = env.tracker.ImportXLSX(ctx, user, strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTrackerService_ImportJSON(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	payload := `{"projects":[{"name":"Trips","tables":[{"name":"2026","columns":["place"],"rows":[["Kyoto"]]}]}]}`
	doc, err := env.tracker.ImportJSON(ctx, user, strings.NewReader(payload))
	assert.NoError(t, err)
	if assert.Len(t, doc.Projects, 1) {
		assert.Equal(t, "Trips", doc.Projects[0].Name)
	}

	_, err = env.tracker.ImportJSON(ctx, user, strings.NewReader("{broken"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
