package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobInfo describes one stored object.
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore is the storage contract the registry, sweeper and handlers
// operate against. Keys are names relative to the store root.
type BlobStore interface {
	Put(key string, r io.Reader) (int64, error)
	Open(key string) (io.ReadCloser, error)
	Stat(key string) (BlobInfo, error)
	Delete(key string) error
	List() ([]BlobInfo, error)

	// Path resolves a key to an absolute filesystem path so an external
	// tool can write the blob directly.
	Path(key string) string
}

// FileStore keeps blobs in a flat working directory on the local
// filesystem.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath, creating the
// directory when missing.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("store: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (s *FileStore) Put(key string, r io.Reader) (int64, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(filepath.Join(s.basePath, clean))
	if err != nil {
		return 0, fmt.Errorf("store: create %s: %w", clean, err)
	}
	defer f.Close()
	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("store: write %s: %w", clean, err)
	}
	return n, nil
}

func (s *FileStore) Open(key string) (io.ReadCloser, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, clean))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", clean, err)
	}
	return f, nil
}

func (s *FileStore) Stat(key string) (BlobInfo, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return BlobInfo{}, err
	}
	fi, err := os.Stat(filepath.Join(s.basePath, clean))
	if err != nil {
		return BlobInfo{}, fmt.Errorf("store: stat %s: %w", clean, err)
	}
	return BlobInfo{Key: clean, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *FileStore) Delete(key string) error {
	clean, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.basePath, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", clean, err)
	}
	return nil
}

func (s *FileStore) List() ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	blobs := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		blobs = append(blobs, BlobInfo{Key: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	return blobs, nil
}

func (s *FileStore) Path(key string) string {
	clean, err := sanitizeKey(key)
	if err != nil {
		return ""
	}
	return filepath.Join(s.basePath, clean)
}

// sanitizeKey normalizes a key and prevents escaping the store root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("store: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "/") {
		return "", errors.New("store: invalid key")
	}
	return cleaned, nil
}
