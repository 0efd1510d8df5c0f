package models

import "time"

// SnapshotMaxAge is how long a local snapshot stays eligible for recovery.
// Older snapshots are ignored by reconciliation and deleted on sight.
const SnapshotMaxAge = 24 * time.Hour

// LocalSnapshot is the fallback copy of a working draft, written alongside
// (and regardless of) remote saves. It is a backup, never a second source of
// truth: any successful remote save deletes the corresponding snapshot.
type LocalSnapshot struct {
	FacilityID   string      `json:"facilityId"`
	FacilityName string      `json:"facilityName"`
	UserID       string      `json:"userId"`
	AccountID    string      `json:"accountId"`
	Responses    []*Response `json:"responses"`
	GeneralNotes string      `json:"generalComments"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Expired reports whether the snapshot is too old to recover from
func (s *LocalSnapshot) Expired(now time.Time) bool {
	return now.Sub(s.Timestamp) >= SnapshotMaxAge
}
