// Package repo implements gorm-backed persistence for users, notes,
// attachments, shares and tracker documents.
package repo

import (
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"github.com/Ubastic/notemind/internal/model"
)

// InitDB opens the database selected by the DSN (postgres URL or sqlite file
// path) and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dial = postgres.Open(dsn)
	} else {
		// modernc.org/sqlite keeps the build cgo-free
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	}

	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
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
		return nil, err
	}
	return db, nil
}
