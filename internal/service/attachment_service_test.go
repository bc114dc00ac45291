package service

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ubastic/notemind/internal/apperr"
)

func TestAttachmentService_UploadAndOpen(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	view, err := env.attachments.Upload(ctx, user, nil, "../weird/../photo.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	assert.NoError(t, err)
	assert.Equal(t, "photo.png", view.Attachment.Filename)
	assert.Equal(t, int64(9), view.Attachment.Size)
	assert.True(t, strings.HasSuffix(view.Attachment.StoredName, ".png"))
	assert.NotEqual(t, "photo.png", view.Attachment.StoredName)

	got, path, err := env.attachments.Open(ctx, &user.ID, "", view.Attachment.ID)
	assert.NoError(t, err)
	assert.Equal(t, view.Attachment.ID, got.ID)
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestAttachmentService_UploadRejectsOversize(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")

	big := bytes.Repeat([]byte("x"), (1<<20)+1)
	_, err := env.attachments.Upload(context.Background(), user, nil, "big.bin", "application/octet-stream", bytes.NewReader(big))
	assert.ErrorIs(t, err, apperr.ErrTooLarge)

	// nothing left behind on disk or in the table
	views, total, listErr := env.attachments.List(context.Background(), user, nil, 1, 20)
	assert.NoError(t, listErr)
	assert.Empty(t, views)
	assert.Zero(t, total)
}

func TestAttachmentService_UploadRequiresOwnedNote(t *testing.T) {
	env := newTestEnv(t, false)
	alice := registerUser(t, env, "alice")
	bob := registerUser(t, env, "bob")
	ctx := context.Background()

	note, err := env.notes.Create(ctx, alice, CreateNoteInput{Content: "alice note"})
	assert.NoError(t, err)

	_, err = env.attachments.Upload(ctx, bob, &note.Note.ID, "doc.txt", "text/plain", bytes.NewReader([]byte("hi")))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAttachmentService_OpenAuthorization(t *testing.T) {
	env := newTestEnv(t, false)
	alice := registerUser(t, env, "alice")
	bob := registerUser(t, env, "bob")
	ctx := context.Background()

	note, err := env.notes.Create(ctx, alice, CreateNoteInput{Content: "with file"})
	assert.NoError(t, err)
	att, err := env.attachments.Upload(ctx, alice, &note.Note.ID, "doc.txt", "text/plain", bytes.NewReader([]byte("hi")))
	assert.NoError(t, err)

	// another user is rejected even with the right id
	_, _, err = env.attachments.Open(ctx, &bob.ID, "", att.Attachment.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// anonymous access needs a share token of a note referencing the file
	_, _, err = env.attachments.Open(ctx, nil, "", att.Attachment.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	share, err := env.shares.Create(ctx, alice, note.Note.ID, nil)
	assert.NoError(t, err)
	got, _, err := env.attachments.Open(ctx, nil, share.Token, att.Attachment.ID)
	assert.NoError(t, err)
	assert.Equal(t, att.Attachment.ID, got.ID)

	// a share of an unrelated note grants nothing
	other, err := env.notes.Create(ctx, alice, CreateNoteInput{Content: "no files here"})
	assert.NoError(t, err)
	otherShare, err := env.shares.Create(ctx, alice, other.Note.ID, nil)
	assert.NoError(t, err)
	_, _, err = env.attachments.Open(ctx, nil, otherShare.Token, att.Attachment.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAttachmentService_Delete(t *testing.T) {
	env := newTestEnv(t, false)
	alice := registerUser(t, env, "alice")
	bob := registerUser(t, env, "bob")
	ctx := context.Background()

	att, err := env.attachments.Upload(ctx, alice, nil, "note.txt", "text/plain", bytes.NewReader([]byte("bye")))
	assert.NoError(t, err)
	path := env.files.Path(alice.ID, att.Attachment.StoredName)

	err = env.attachments.Delete(ctx, bob, att.Attachment.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.NoError(t, env.attachments.Delete(ctx, alice, att.Attachment.ID))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	err = env.attachments.Delete(ctx, alice, att.Attachment.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
