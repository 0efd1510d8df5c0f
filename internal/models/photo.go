package models

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPhotosPerResponse caps how many photos a single checklist item may carry
const MaxPhotosPerResponse = 10

// Photo is one attachment catalogued against a checklist response. A Photo
// exists only after both the blob write and the metadata insert succeeded.
type Photo struct {
	ID           string    `json:"id"`
	InspectionID string    `json:"inspectionId"`
	QuestionID   string    `json:"questionId"`
	StoragePath  string    `json:"storagePath"`
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// NewPhoto creates a photo record with validation and filename sanitization
func NewPhoto(inspectionID, questionID, storagePath, fileName string, fileSize int64) (*Photo, error) {
	if strings.TrimSpace(inspectionID) == "" {
		return nil, ErrEmptyInspectionID
	}
	if strings.TrimSpace(questionID) == "" {
		return nil, ErrEmptyQuestionID
	}
	if strings.TrimSpace(storagePath) == "" {
		return nil, ErrEmptyStoredPath
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ErrEmptyFilename
	}
	if fileSize <= 0 {
		return nil, ErrInvalidFileSize
	}

	return &Photo{
		ID:           uuid.New().String(),
		InspectionID: inspectionID,
		QuestionID:   questionID,
		StoragePath:  storagePath,
		FileName:     SanitizeFilename(fileName),
		FileSize:     fileSize,
		UploadedAt:   time.Now().UTC(),
	}, nil
}

// SanitizeFilename removes path components and invalid characters
func SanitizeFilename(filename string) string {
	name := filepath.Base(filename)

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
	)
	name = replacer.Replace(name)

	const maxLength = 200
	if len(name) > maxLength {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		if len(base) > maxLength-len(ext) {
			base = base[:maxLength-len(ext)]
		}
		name = base + ext
	}

	return name
}

// PhotoError is a domain error for attachment operations
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptyInspectionID  = PhotoError{"inspection id cannot be empty"}
	ErrEmptyQuestionID    = PhotoError{"question id cannot be empty"}
	ErrEmptyFilename      = PhotoError{"file name cannot be empty"}
	ErrEmptyStoredPath    = PhotoError{"storage path cannot be empty"}
	ErrInvalidFileSize    = PhotoError{"file size must be positive"}
	ErrPhotoNotFound      = PhotoError{"photo not found"}
	ErrPhotoLimitExceeded = PhotoError{"photo limit reached for this checklist item"}
	ErrPhotoTooLarge      = PhotoError{"photo exceeds maximum size after processing"}
	ErrNoPhotosAttached   = PhotoError{"no photos in the batch could be attached"}
	ErrDraftNotSaved      = PhotoError{"inspection draft must be saved before attaching photos"}
	ErrPathTraversal      = PhotoError{"invalid path - path traversal detected"}
)
