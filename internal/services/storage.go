package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inspectsync/server/internal/models"
)

// BlobStore is the filesystem-backed attachment storage. Paths are derived
// deterministically from the owning inspection and question, so a blob can
// always be traced back to its checklist item.
type BlobStore struct {
	basePath string
}

// NewBlobStore creates a BlobStore rooted at basePath
func NewBlobStore(basePath string) (*BlobStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	return &BlobStore{basePath: absPath}, nil
}

// PathFor derives the storage path for one file of an upload batch
func (s *BlobStore) PathFor(inspectionID, questionID string, at time.Time, index int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%s/%d_%02d%s",
		sanitizePathPart(inspectionID),
		sanitizePathPart(questionID),
		at.Unix(),
		index,
		strings.ToLower(ext),
	)
}

// Store writes blob data at the given relative path
func (s *BlobStore) Store(reader io.Reader, relativePath string) error {
	fullPath, err := s.fullPath(relativePath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(fullPath) // Clean up on error
		return err
	}

	return nil
}

// Delete removes a blob by its stored path. Returns false when the blob
// was not there or could not be removed; callers treat this as best-effort.
func (s *BlobStore) Delete(storedPath string) bool {
	if strings.TrimSpace(storedPath) == "" {
		return false
	}

	fullPath, err := s.fullPath(storedPath)
	if err != nil {
		return false
	}

	if err := os.Remove(fullPath); err != nil {
		return false
	}

	return true
}

// Exists checks if a blob exists at the given stored path
func (s *BlobStore) Exists(storedPath string) bool {
	fullPath, err := s.fullPath(storedPath)
	if err != nil {
		return false
	}

	_, err = os.Stat(fullPath)
	return err == nil
}

// FullPath returns the absolute filesystem path for a stored path
func (s *BlobStore) FullPath(storedPath string) (string, error) {
	return s.fullPath(storedPath)
}

func (s *BlobStore) fullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", fmt.Errorf("stored path cannot be empty")
	}

	normalized := filepath.FromSlash(storedPath)
	fullPath := filepath.Join(s.basePath, normalized)

	// Security check
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, s.basePath) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

func sanitizePathPart(part string) string {
	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
	)
	part = replacer.Replace(part)
	if part == "" {
		part = "_"
	}
	return part
}
