package models

import (
	"strings"
	"time"
)

// Signature is the stored signing credential for an (account, user) pair.
// Completion requires one to exist; drafts never touch it.
type Signature struct {
	AccountID     string    `json:"accountId"`
	UserID        string    `json:"userId"`
	InspectorName string    `json:"inspectorName"`
	SignatureData string    `json:"signatureData"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Valid reports whether the credential can sign a completed inspection
func (s *Signature) Valid() bool {
	return s != nil && strings.TrimSpace(s.SignatureData) != ""
}

var ErrSignatureNotFound = InspectionError{"no signature on file for this inspector"}
