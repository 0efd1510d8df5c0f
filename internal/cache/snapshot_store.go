// Package cache implements the local fallback store for draft snapshots.
// It is a best-effort safety net: failures here are logged by callers and
// never surfaced to users.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inspectsync/server/internal/models"
)

// SnapshotStore persists one LocalSnapshot per (facility, user) key as a
// JSON file under a base directory. Writes are atomic (tmp + rename) so a
// process killed mid-write never leaves a corrupt snapshot behind.
type SnapshotStore struct {
	basePath string
}

// NewSnapshotStore creates a store rooted at basePath
func NewSnapshotStore(basePath string) (*SnapshotStore, error) {
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

	return &SnapshotStore{basePath: absPath}, nil
}

// Set writes the snapshot for its (facility, user) key, replacing any
// previous one
func (s *SnapshotStore) Set(snapshot *models.LocalSnapshot) error {
	path, err := s.keyPath(snapshot.FacilityID, snapshot.UserID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Get reads the snapshot for a (facility, user) key. A missing or unreadable
// entry returns (nil, nil); the cache never fails loudly over a bad file,
// it just treats it as absent.
func (s *SnapshotStore) Get(facilityID, userID string) (*models.LocalSnapshot, error) {
	path, err := s.keyPath(facilityID, userID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot models.LocalSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// Corrupt entry: discard it so the next read is clean
		os.Remove(path)
		return nil, nil
	}

	return &snapshot, nil
}

// Delete removes the snapshot for a (facility, user) key. Removing a key
// that does not exist is not an error.
func (s *SnapshotStore) Delete(facilityID, userID string) error {
	path, err := s.keyPath(facilityID, userID)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Age returns how old the stored snapshot is. Returns (0, false) when no
// snapshot exists for the key.
func (s *SnapshotStore) Age(facilityID, userID string, now time.Time) (time.Duration, bool) {
	snapshot, err := s.Get(facilityID, userID)
	if err != nil || snapshot == nil {
		return 0, false
	}
	return now.Sub(snapshot.Timestamp), true
}

// keyPath maps a (facility, user) key to a file path inside the base dir
func (s *SnapshotStore) keyPath(facilityID, userID string) (string, error) {
	if strings.TrimSpace(facilityID) == "" || strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("snapshot key requires facility and user ids")
	}

	name := fmt.Sprintf("%s_%s.json", sanitizeKeyPart(facilityID), sanitizeKeyPart(userID))
	path := filepath.Join(s.basePath, name)

	// Security check: ensure path is within base path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, s.basePath) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// sanitizeKeyPart keeps ids filesystem-safe
func sanitizeKeyPart(part string) string {
	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(part)
}
