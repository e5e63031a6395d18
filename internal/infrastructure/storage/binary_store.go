package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// BinaryStore persists firmware images under opaque keys. The catalog hands
// out keys (binary refs) and never looks inside the bytes.
type BinaryStore interface {
	// Save streams the image to a new key and returns the key, the byte
	// count and the sha256 checksum.
	Save(name string, r io.Reader) (ref string, size int64, checksum string, err error)
	// Open returns a reader over the stored image.
	Open(ref string) (io.ReadCloser, error)
	Delete(ref string) error
	Exists(ref string) (bool, error)
}

// FileBinaryStore keeps images on a filesystem. Backed by the OS filesystem
// in production and afero's MemMapFs in tests.
type FileBinaryStore struct {
	fs   afero.Fs
	root string
}

func NewFileBinaryStore(root string) (*FileBinaryStore, error) {
	return newStore(afero.NewOsFs(), root)
}

func NewMemBinaryStore() *FileBinaryStore {
	store, _ := newStore(afero.NewMemMapFs(), "firmware")
	return store
}

func newStore(fs afero.Fs, root string) (*FileBinaryStore, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create firmware dir: %w", err)
	}
	return &FileBinaryStore{fs: fs, root: root}, nil
}

func (s *FileBinaryStore) Save(name string, r io.Reader) (string, int64, string, error) {
	// Key is random so identical file names never collide; the original
	// name is catalog metadata, not part of the key.
	ref := uuid.New().String() + filepath.Ext(name)

	f, err := s.fs.OpenFile(s.path(ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to create binary file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(s.path(ref))
		return "", 0, "", fmt.Errorf("failed to write binary: %w", err)
	}

	return ref, size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *FileBinaryStore) Open(ref string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open binary %s: %w", ref, err)
	}
	return f, nil
}

func (s *FileBinaryStore) Delete(ref string) error {
	if err := s.fs.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete binary %s: %w", ref, err)
	}
	return nil
}

func (s *FileBinaryStore) Exists(ref string) (bool, error) {
	return afero.Exists(s.fs, s.path(ref))
}

func (s *FileBinaryStore) path(ref string) string {
	return filepath.Join(s.root, filepath.Base(ref))
}
