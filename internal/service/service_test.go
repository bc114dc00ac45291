package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/Ubastic/notemind/internal/ai"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// --- Analyzer mock ---

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context, text string, categories []string) (ai.Analysis, error) {
	args := m.Called(ctx, text, categories)
	return args.Get(0).(ai.Analysis), args.Error(1)
}
func (m *mockAnalyzer) Embed(ctx context.Context, text string) ([]float64, error) {
	args := m.Called(ctx, text)
	if v, ok := args.Get(0).([]float64); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAnalyzer) ParseSearchQuery(ctx context.Context, query string) (ai.SearchMeta, error) {
	args := m.Called(ctx, query)
	return args.Get(0).(ai.SearchMeta), args.Error(1)
}
func (m *mockAnalyzer) Summarize(ctx context.Context, notes []string, days int) (string, error) {
	args := m.Called(ctx, notes, days)
	return args.String(0), args.Error(1)
}
func (m *mockAnalyzer) Answer(ctx context.Context, question string, notes []string) (string, error) {
	args := m.Called(ctx, question, notes)
	return args.String(0), args.Error(1)
}

var _ ai.Analyzer = (*mockAnalyzer)(nil)

// --- Test wiring ---

func newServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite (modernc): %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.UserSettings{},
		&model.Note{},
		&model.Attachment{},
		&model.NoteAttachment{},
		&model.Share{},
		&model.TrackerDocument{},
	); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	return db
}

type testEnv struct {
	db          *gorm.DB
	analyzer    *mockAnalyzer
	files       *FileStore
	users       *UserService
	notes       *NoteService
	shares      *ShareService
	attachments *AttachmentService
	tracker     *TrackerService
}

func newTestEnv(t *testing.T, aiFeature bool) *testEnv {
	t.Helper()
	db := newServiceTestDB(t)
	log := zap.NewNop().Sugar()
	analyzer := &mockAnalyzer{}
	files := NewFileStore(t.TempDir())

	userRepo := repo.NewUserRepository(db)
	noteRepo := repo.NewNoteRepository(db)
	attachmentRepo := repo.NewAttachmentRepository(db)
	shareRepo := repo.NewShareRepository(db)
	trackerRepo := repo.NewTrackerRepository(db)

	users := NewUserService(userRepo, aiFeature)
	notes := NewNoteService(noteRepo, attachmentRepo, shareRepo, users, analyzer, files, 0.2, log)
	return &testEnv{
		db:          db,
		analyzer:    analyzer,
		files:       files,
		users:       users,
		notes:       notes,
		shares:      NewShareService(shareRepo, userRepo, notes),
		attachments: NewAttachmentService(attachmentRepo, noteRepo, shareRepo, files, 1<<20, log),
		tracker:     NewTrackerService(trackerRepo),
	}
}

func registerUser(t *testing.T, env *testEnv, username string) *model.User {
	t.Helper()
	user, err := env.users.Register(context.Background(), username, "secret-pass")
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	return user
}

func enableAI(t *testing.T, env *testEnv, user *model.User) {
	t.Helper()
	if _, err := env.users.UpdateSettings(context.Background(), user, Settings{AIEnabled: true}); err != nil {
		t.Fatalf("failed to enable AI: %v", err)
	}
}
