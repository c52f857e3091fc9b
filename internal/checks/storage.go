package checks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const storageProbeDir = "healthboard_health_check"

// StorageBackend saves, reads back and deletes a probe file.
type StorageBackend struct {
	base
	root string
}

// NewStorageBackend creates a storage check rooted at dir.
func NewStorageBackend(dir string) *StorageBackend {
	return &StorageBackend{
		base: base{name: "Storage", slug: "storage", critical: true},
		root: dir,
	}
}

// Check implements Backend.
func (b *StorageBackend) Check(_ context.Context) error {
	dir := filepath.Join(b.root, storageProbeDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Unavailable("Unable to create storage directory", err)
	}

	path := filepath.Join(dir, "test-"+uuid.NewString()+".txt")
	if err := os.WriteFile(path, []byte(workingMessage), 0o644); err != nil {
		return Unavailable("Unable to save file", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		_ = os.Remove(path)
		return Unavailable("File does not exist", err)
	}
	if string(content) != workingMessage {
		_ = os.Remove(path)
		return Unavailable("File content does not match", nil)
	}

	if err := os.Remove(path); err != nil {
		return Unavailable("Unable to delete file", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return Unavailable("File was not deleted", err)
	}
	return nil
}
