package storage

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
)

var (
	ErrBlobNotFound = errors.New("attachment not found")
	ErrInvalidName  = errors.New("invalid attachment name")
)

// AttachmentStore is a flat namespace of generated blob names.
type AttachmentStore interface {
	// Put stores r and returns a generated, collision-resistant name.
	// originalName only contributes its extension.
	Put(ctx context.Context, originalName string, r io.Reader) (string, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Delete is idempotent: a missing name reports deleted=false with a nil error.
	Delete(ctx context.Context, name string) (deleted bool, err error)
	Resolve(ctx context.Context, name string) (io.ReadCloser, error)
}

// DiskStore keeps attachments as files under a single directory.
type DiskStore struct {
	dir string
	now func() time.Time
}

func NewDiskStore(dir string) (*DiskStore, error) {
	// Create destination directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Put(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := GenerateName(s.now(), originalName)
	path := filepath.Join(s.dir, name)

	// O_EXCL so a generated name is never silently overwritten
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create %s: %w", name, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("storage: close %s: %w", name, err)
	}
	return name, nil
}

func (s *DiskStore) Exists(_ context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *DiskStore) Delete(_ context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *DiskStore) Resolve(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

// path rejects anything that could escape the store directory.
func (s *DiskStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

// GenerateName builds "<unix-millis>-<uuid><ext>".
func GenerateName(at time.Time, originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return fmt.Sprintf("%d-%s%s", at.UnixMilli(), uuid.NewString(), ext)
}
