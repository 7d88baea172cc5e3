// Package storage keeps attachment blobs on local disk. Metadata
// lives in the attachments table; only the generated filename and the
// resolved path are stored there.
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/holyokefd/portal/internal/repository"
)

// ErrFileMissing is returned when an attachment's metadata row exists
// but the blob is gone from disk. Handlers surface it distinctly from
// a missing metadata row.
var ErrFileMissing = errors.New("file not found on disk")

// ErrTooLarge is returned when an upload exceeds the per-file cap.
var ErrTooLarge = errors.New("file too large")

// MaxFileBytes caps a single upload at 10 MB, and MaxFilesPerItem
// caps how many files one bulletin or message may carry.
const (
	MaxFileBytes    = 10 << 20
	MaxFilesPerItem = 5
)

// Store writes uploads into a single flat directory under generated
// uuid filenames, so original names never touch the filesystem.
type Store struct{ Dir string }

// NewStore creates the upload directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save copies one multipart upload to disk and returns the metadata
// to persist. Files over MaxFileBytes are rejected before writing.
func (s *Store) Save(fh *multipart.FileHeader) (repository.AttachmentInput, error) {
	if fh.Size > MaxFileBytes {
		return repository.AttachmentInput{}, ErrTooLarge
	}
	src, err := fh.Open()
	if err != nil {
		return repository.AttachmentInput{}, err
	}
	defer src.Close()

	name := uuid.NewString() + filepath.Ext(fh.Filename)
	path := filepath.Join(s.Dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return repository.AttachmentInput{}, err
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, MaxFileBytes+1))
	if err != nil {
		os.Remove(path)
		return repository.AttachmentInput{}, err
	}
	if n > MaxFileBytes {
		os.Remove(path)
		return repository.AttachmentInput{}, ErrTooLarge
	}
	return repository.AttachmentInput{
		Filename:         name,
		OriginalFilename: fh.Filename,
		FilePath:         path,
		FileSize:         n,
		MimeType:         fh.Header.Get("Content-Type"),
	}, nil
}

// Open returns the blob at path for streaming. A path that resolves
// to nothing yields ErrFileMissing so callers can distinguish it from
// a missing metadata row.
func (s *Store) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileMissing
		}
		return nil, err
	}
	return f, nil
}

// Remove unlinks a blob. Best effort: a file already gone is fine.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
