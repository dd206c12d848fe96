package progress

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"medgame/internal/models"
)

// Backend is a small key/value store for save documents.
// Read returns nil, nil when the key does not exist.
type Backend interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Delete(key string) error
}

var validKey = regexp.MustCompile(`^[a-z0-9_-]+$`)

// FileBackend keeps one YAML file per key in a directory
type FileBackend struct {
	dir string
}

// NewFileBackend creates the directory if needed
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid save key %q", key)
	}
	return filepath.Join(b.dir, key+".yaml"), nil
}

func (b *FileBackend) Read(key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Write replaces the file atomically through a temporary file
func (b *FileBackend) Write(key string, data []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, key+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (b *FileBackend) Delete(key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SaveRepository is the subset of repository.SaveRepository used here
type SaveRepository interface {
	Get(key string) (*models.SaveEntry, error)
	Put(key, payload string) error
	Delete(key string) error
}

// RepositoryBackend stores documents in the saves table
type RepositoryBackend struct {
	repo SaveRepository
}

func NewRepositoryBackend(repo SaveRepository) *RepositoryBackend {
	return &RepositoryBackend{repo: repo}
}

func (b *RepositoryBackend) Read(key string) ([]byte, error) {
	entry, err := b.repo.Get(key)
	if err != nil || entry == nil {
		return nil, err
	}
	return []byte(entry.Payload), nil
}

func (b *RepositoryBackend) Write(key string, data []byte) error {
	return b.repo.Put(key, string(data))
}

func (b *RepositoryBackend) Delete(key string) error {
	return b.repo.Delete(key)
}
