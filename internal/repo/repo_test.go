package repo

import (
	"path/filepath"
	"testing"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/Ubastic/notemind/internal/model"
)

// newTestDB opens an isolated SQLite database (modernc.org/sqlite) for
// repository tests and migrates the full schema.
func newTestDB(t *testing.T) *gorm.DB {
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
