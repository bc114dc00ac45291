package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// FileStore keeps attachment files on disk, one directory per user.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (f *FileStore) userDir(userID int64) string {
	return filepath.Join(f.dir, fmt.Sprintf("user_%d", userID))
}

// Path returns the on-disk location of a stored file.
func (f *FileStore) Path(userID int64, storedName string) string {
	return filepath.Join(f.userDir(userID), storedName)
}

// Save streams r into the user's directory and returns the byte count.
func (f *FileStore) Save(userID int64, storedName string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(f.userDir(userID), 0o755); err != nil {
		return 0, err
	}
	target, err := os.Create(f.Path(userID, storedName))
	if err != nil {
		return 0, err
	}
	defer target.Close()
	return io.Copy(target, r)
}

// Remove deletes a stored file; a missing file is not an error.
func (f *FileStore) Remove(userID int64, storedName string) error {
	err := os.Remove(f.Path(userID, storedName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// AttachmentView pairs an attachment row with every note that references it.
type AttachmentView struct {
	Attachment *model.Attachment
	NoteIDs    []int64
}

// AttachmentService stores uploaded files and controls access to them.
type AttachmentService struct {
	attachments repo.AttachmentRepository
	notes       repo.NoteRepository
	shares      repo.ShareRepository
	files       *FileStore
	maxBytes    int64
	log         *zap.SugaredLogger
}

// NewAttachmentService creates an AttachmentService. maxBytes of 0 disables
// the size limit.
func NewAttachmentService(
	attachments repo.AttachmentRepository,
	notes repo.NoteRepository,
	shares repo.ShareRepository,
	files *FileStore,
	maxBytes int64,
	log *zap.SugaredLogger,
) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		notes:       notes,
		shares:      shares,
		files:       files,
		maxBytes:    maxBytes,
		log:         log,
	}
}

// sanitizeFilename strips any path components from a client-sent name.
func sanitizeFilename(name string) string {
	cleaned := filepath.Base(strings.TrimSpace(name))
	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		return "file"
	}
	return cleaned
}

// Upload stores a file for the user, optionally linking it to a note the
// user owns. Files over the size limit are rejected and removed.
func (s *AttachmentService) Upload(ctx context.Context, user *model.User, noteID *int64, filename, mimeType string, r io.Reader) (*AttachmentView, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: missing file", apperr.ErrValidation)
	}
	if noteID != nil {
		if _, err := s.notes.GetByID(ctx, user.ID, *noteID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: note", apperr.ErrNotFound)
			}
			return nil, err
		}
	}

	safeName := sanitizeFilename(filename)
	ext := filepath.Ext(safeName)
	if len(ext) > 10 {
		ext = ext[:10]
	}
	storedName := uuid.NewString() + ext

	// read one byte past the limit so oversized uploads are detected without
	// buffering the whole body
	reader := r
	if s.maxBytes > 0 {
		reader = io.LimitReader(r, s.maxBytes+1)
	}
	size, err := s.files.Save(user.ID, storedName, reader)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		if err := s.files.Remove(user.ID, storedName); err != nil {
			s.log.Warnw("failed to remove oversized upload", "stored_name", storedName, "error", err)
		}
		return nil, fmt.Errorf("%w: file too large", apperr.ErrTooLarge)
	}

	attachment := &model.Attachment{
		UserID:     user.ID,
		NoteID:     noteID,
		Filename:   safeName,
		MimeType:   mimeType,
		StoredName: storedName,
		Size:       size,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		return nil, err
	}
	if noteID != nil {
		if err := s.attachments.Link(ctx, *noteID, attachment.ID); err != nil {
			return nil, err
		}
	}
	return s.viewOf(ctx, attachment)
}

func (s *AttachmentService) viewOf(ctx context.Context, attachment *model.Attachment) (*AttachmentView, error) {
	linked, err := s.attachments.LinkedNoteIDs(ctx, attachment.ID)
	if err != nil {
		return nil, err
	}
	noteIDs := append([]int64{}, linked...)
	if attachment.NoteID != nil && !containsID(noteIDs, *attachment.NoteID) {
		noteIDs = append(noteIDs, *attachment.NoteID)
	}
	return &AttachmentView{Attachment: attachment, NoteIDs: noteIDs}, nil
}

func containsID(ids []int64, id int64) bool {
	for _, item := range ids {
		if item == id {
			return true
		}
	}
	return false
}

// List pages the user's attachments, optionally only those referencing one
// note.
func (s *AttachmentService) List(ctx context.Context, user *model.User, noteID *int64, page, pageSize int) ([]AttachmentView, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	items, total, err := s.attachments.List(ctx, user.ID, noteID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	views := make([]AttachmentView, 0, len(items))
	for i := range items {
		v, err := s.viewOf(ctx, &items[i])
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *v)
	}
	return views, total, nil
}

// Open authorizes access to an attachment file and returns its metadata and
// path. userID is nil for anonymous callers, who must present a share token
// of a note referencing the attachment.
func (s *AttachmentService) Open(ctx context.Context, userID *int64, shareToken string, attachmentID int64) (*model.Attachment, string, error) {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: attachment", apperr.ErrNotFound)
		}
		return nil, "", err
	}

	if userID != nil {
		if attachment.UserID != *userID {
			return nil, "", fmt.Errorf("%w: attachment", apperr.ErrForbidden)
		}
	} else {
		if shareToken == "" {
			return nil, "", fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
		}
		share, err := s.shares.GetByToken(ctx, shareToken)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", fmt.Errorf("%w: share", apperr.ErrNotFound)
			}
			return nil, "", err
		}
		if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
			return nil, "", fmt.Errorf("%w: share", apperr.ErrExpired)
		}
		if attachment.NoteID == nil || *attachment.NoteID != share.NoteID {
			linked, err := s.attachments.IsLinked(ctx, share.NoteID, attachment.ID)
			if err != nil {
				return nil, "", err
			}
			if !linked {
				return nil, "", fmt.Errorf("%w: attachment", apperr.ErrForbidden)
			}
		}
	}

	path := s.files.Path(attachment.UserID, attachment.StoredName)
	if _, err := os.Stat(path); err != nil {
		return nil, "", fmt.Errorf("%w: file missing", apperr.ErrNotFound)
	}
	return attachment, path, nil
}

// Delete removes an owned attachment: its link rows, its file, its row.
func (s *AttachmentService) Delete(ctx context.Context, user *model.User, id int64) error {
	attachment, err := s.attachments.GetOwned(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: attachment", apperr.ErrNotFound)
		}
		return err
	}
	linked, err := s.attachments.LinkedNoteIDs(ctx, attachment.ID)
	if err != nil {
		return err
	}
	for _, noteID := range linked {
		if err := s.attachments.Unlink(ctx, noteID, []int64{attachment.ID}); err != nil {
			return err
		}
	}
	if err := s.files.Remove(attachment.UserID, attachment.StoredName); err != nil {
		s.log.Warnw("failed to remove attachment file", "stored_name", attachment.StoredName, "error", err)
	}
	return s.attachments.Delete(ctx, attachment.ID)
}
