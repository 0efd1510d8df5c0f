package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Inspector is a field user who conducts inspections. The (AccountID, ID)
// pair is the identity every draft, snapshot and signature is keyed on.
type Inspector struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"accountId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	APIKey     string    `json:"apiKey,omitempty"` // Only shown on creation
	APIKeyHash string    `json:"-"`                // Never exposed
	PINHash    string    `json:"-"`                // Never exposed
	CreatedAt  time.Time `json:"createdAt"`
	IsActive   bool      `json:"isActive"`
}

// NewInspector creates an inspector with a freshly generated API key
func NewInspector(accountID, name, email string) (*Inspector, error) {
	accountID = strings.TrimSpace(accountID)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if accountID == "" {
		return nil, ErrEmptyAccountID
	}
	if name == "" {
		return nil, ErrEmptyInspectorName
	}

	apiKey, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	return &Inspector{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Name:       name,
		Email:      email,
		APIKey:     apiKey,
		APIKeyHash: HashAPIKey(apiKey),
		CreatedAt:  time.Now().UTC(),
		IsActive:   true,
	}, nil
}

// GenerateAPIKey creates a secure random API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashAPIKey creates a SHA256 hash of an API key for indexed lookup
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}

// SetPIN hashes and sets the inspector's signing PIN using bcrypt (cost 12).
// The PIN, when set, is re-entered at completion time to authorize signing.
func (i *Inspector) SetPIN(pin string) error {
	if len(pin) < 4 {
		return ErrPINTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), 12)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}

	i.PINHash = string(hash)
	return nil
}

// VerifyPIN checks the provided PIN against the stored hash (constant-time via bcrypt)
func (i *Inspector) VerifyPIN(pin string) bool {
	if i.PINHash == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(i.PINHash), []byte(pin))
	return err == nil
}

// HasPIN returns true if the inspector has a signing PIN set
func (i *Inspector) HasPIN() bool {
	return i.PINHash != ""
}

var (
	ErrEmptyInspectorName = InspectionError{"inspector name cannot be empty"}
	ErrInspectorNotFound  = InspectionError{"inspector not found"}
	ErrInvalidAPIKey      = InspectionError{"invalid API key"}
	ErrPINTooShort        = InspectionError{"pin must be at least 4 characters"}
	ErrInvalidPIN         = InspectionError{"invalid signing pin"}
)
