package services

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadStore keeps an upload on disk only while it is being analysed.
type UploadStore struct {
	dir string
}

func NewUploadStore(dir string) *UploadStore {
	return &UploadStore{dir: dir}
}

// Save writes r under a fresh name that keeps the original extension.
func (s *UploadStore) Save(filename string, r io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+strings.ToLower(filepath.Ext(filename)))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}
	return path, size, nil
}

func (s *UploadStore) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("WARNING: failed to remove upload %s: %v", path, err)
	}
}
