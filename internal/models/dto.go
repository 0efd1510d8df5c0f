package models

import "time"

// OpenSessionRequest starts (or resumes) an editing session for a facility
type OpenSessionRequest struct {
	FacilityID   string `json:"facilityId"`
	FacilityName string `json:"facilityName"`
	TemplateName string `json:"templateName,omitempty"`
}

// SessionResponse describes the working draft after reconciliation
type SessionResponse struct {
	SessionID       string      `json:"sessionId"`
	InspectionID    string      `json:"inspectionId,omitempty"`
	FacilityID      string      `json:"facilityId"`
	TemplateID      string      `json:"templateId"`
	Status          string      `json:"status"`
	Responses       []*Response `json:"responses"`
	GeneralComments string      `json:"generalComments"`
	Dirty           bool        `json:"dirty"`
	RecoveredLocal  bool        `json:"recoveredLocal"`
	RemoteDegraded  bool        `json:"remoteDegraded"`
	LastSavedAt     *time.Time  `json:"lastSavedAt,omitempty"`
}

// MutateRequest applies one edit to the working draft. Fields are pointers so
// an absent field leaves the current value untouched.
type MutateRequest struct {
	QuestionID      string  `json:"questionId,omitempty"`
	Answer          *Answer `json:"answer,omitempty"`
	Comments        *string `json:"comments,omitempty"`
	ActionRequired  *bool   `json:"actionRequired,omitempty"`
	ActionNotes     *string `json:"actionNotes,omitempty"`
	GeneralComments *string `json:"generalComments,omitempty"`
	Suspend         bool    `json:"suspend,omitempty"`
}

// SaveResult is returned by an explicit draft save
type SaveResult struct {
	InspectionID string    `json:"inspectionId"`
	SavedAt      time.Time `json:"savedAt"`
}

// CompleteRequest finalizes a draft into an immutable signed report
type CompleteRequest struct {
	AutoFillConfirmed bool   `json:"autoFillConfirmed"`
	PIN               string `json:"pin,omitempty"`
}

// CompleteResult is returned on successful completion
type CompleteResult struct {
	InspectionID string    `json:"inspectionId"`
	FacilityID   string    `json:"facilityId"`
	FlaggedCount int       `json:"flaggedItemsCount"`
	ActionsCount int       `json:"actionsCount"`
	CompletedAt  time.Time `json:"completedAt"`
}

// RejectedFile reports a file that did not make it into a photo batch
type RejectedFile struct {
	FileName string `json:"fileName"`
	Reason   string `json:"reason"`
}

// PhotoBatchResult is returned by a photo upload. Partial success is not an
// error; only a batch with zero attachments is.
type PhotoBatchResult struct {
	Attached []*Photo       `json:"attached"`
	Rejected []RejectedFile `json:"rejected"`
}

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
