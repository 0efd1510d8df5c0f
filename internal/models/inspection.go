package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// InspectionStatus is the lifecycle state of an inspection record
type InspectionStatus string

const (
	// StatusDraft is the mutable, in-progress state
	StatusDraft InspectionStatus = "draft"
	// StatusCompleted is terminal; no further mutation is permitted
	StatusCompleted InspectionStatus = "completed"
)

// Answer is the value of a gated checklist question
type Answer string

const (
	AnswerYes Answer = "yes"
	AnswerNo  Answer = "no"
	AnswerNA  Answer = "na"
	// AnswerNone means the question has not been answered yet
	AnswerNone Answer = ""
)

// ValidAnswer reports whether a is one of the accepted answer values
func ValidAnswer(a Answer) bool {
	switch a {
	case AnswerYes, AnswerNo, AnswerNA, AnswerNone:
		return true
	}
	return false
}

// Response is one checklist item's state, keyed by question id
type Response struct {
	QuestionID     string   `json:"questionId"`
	Answer         Answer   `json:"answer"`
	Comments       string   `json:"comments"`
	Flagged        bool     `json:"flagged"`
	ActionRequired bool     `json:"actionRequired"`
	ActionNotes    string   `json:"actionNotes"`
	Photos         []*Photo `json:"photos"`
}

// SetAnswer updates the answer and recomputes the derived flagged state.
// Flagged must always equal (answer == no); it is never set independently.
func (r *Response) SetAnswer(a Answer) error {
	if !ValidAnswer(a) {
		return ErrInvalidAnswer
	}
	r.Answer = a
	r.Flagged = a == AnswerNo
	if !r.Flagged {
		r.ActionRequired = false
	}
	return nil
}

// Answered reports whether the response carries a non-empty answer
func (r *Response) Answered() bool {
	return r.Answer != AnswerNone
}

// Inspection is one inspection record for a (facility, account) pair.
// ID is assigned on the first successful store write and never changes
// afterwards; subsequent saves update the same row.
type Inspection struct {
	ID            string           `json:"id"`
	FacilityID    string           `json:"facilityId"`
	AccountID     string           `json:"accountId"`
	TeamNumber    string           `json:"teamNumber"`
	TemplateID    string           `json:"templateId"`
	InspectorName string           `json:"inspectorName"`
	ConductedAt   time.Time        `json:"conductedAt"`
	Responses     []*Response      `json:"responses"`
	GeneralNotes  string           `json:"generalComments"`
	SignatureData string           `json:"signatureData,omitempty"`
	Status        InspectionStatus `json:"status"`
	FlaggedCount  int              `json:"flaggedItemsCount"`
	ActionsCount  int              `json:"actionsCount"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// NewInspection creates a draft inspection with validation
func NewInspection(facilityID, accountID, templateID, inspectorName string, responses []*Response) (*Inspection, error) {
	if strings.TrimSpace(facilityID) == "" {
		return nil, ErrEmptyFacilityID
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, ErrEmptyAccountID
	}

	now := time.Now().UTC()
	insp := &Inspection{
		ID:            uuid.New().String(),
		FacilityID:    facilityID,
		AccountID:     accountID,
		TemplateID:    templateID,
		InspectorName: inspectorName,
		ConductedAt:   now,
		Responses:     responses,
		Status:        StatusDraft,
		UpdatedAt:     now,
	}
	insp.RecomputeCounts()
	return insp, nil
}

// RecomputeCounts refreshes FlaggedCount and ActionsCount from the current
// response set. Counts are always derived at write time, never carried over.
func (i *Inspection) RecomputeCounts() {
	flagged, actions := CountFlags(i.Responses)
	i.FlaggedCount = flagged
	i.ActionsCount = actions
}

// CountFlags tallies flagged responses and required actions
func CountFlags(responses []*Response) (flagged, actions int) {
	for _, r := range responses {
		if r.Flagged {
			flagged++
			if r.ActionRequired {
				actions++
			}
		}
	}
	return flagged, actions
}

// Completed reports whether the record has reached its terminal state
func (i *Inspection) Completed() bool {
	return i.Status == StatusCompleted
}

// EmptyResponses builds one blank response per template question, preserving
// template order. Every reconciliation branch must end with a response set
// whose key-set matches the template exactly; this is the fresh-start case.
func EmptyResponses(t *Template) []*Response {
	responses := make([]*Response, 0, len(t.Questions))
	for _, q := range t.Questions {
		responses = append(responses, &Response{
			QuestionID: q.ID,
			Answer:     AnswerNone,
			Photos:     []*Photo{},
		})
	}
	return responses
}

// AlignResponses maps a stored response set onto the template's question set:
// stored entries are matched by question id, missing questions get a blank
// entry, and entries for questions no longer in the template are dropped.
func AlignResponses(t *Template, stored []*Response) []*Response {
	byQuestion := make(map[string]*Response, len(stored))
	for _, r := range stored {
		byQuestion[r.QuestionID] = r
	}

	aligned := make([]*Response, 0, len(t.Questions))
	for _, q := range t.Questions {
		if r, ok := byQuestion[q.ID]; ok {
			if r.Photos == nil {
				r.Photos = []*Photo{}
			}
			// Re-derive rather than trust the stored flag
			r.Flagged = r.Answer == AnswerNo
			aligned = append(aligned, r)
			continue
		}
		aligned = append(aligned, &Response{
			QuestionID: q.ID,
			Answer:     AnswerNone,
			Photos:     []*Photo{},
		})
	}
	return aligned
}

// InspectionError is a domain error for inspection operations
type InspectionError struct {
	Message string
}

func (e InspectionError) Error() string {
	return e.Message
}

var (
	ErrEmptyFacilityID      = InspectionError{"facility id cannot be empty"}
	ErrEmptyAccountID       = InspectionError{"account id cannot be empty"}
	ErrInvalidAnswer        = InspectionError{"answer must be yes, no, na or empty"}
	ErrUnknownQuestion      = InspectionError{"question id not present in template"}
	ErrInspectionNotFound   = InspectionError{"inspection not found"}
	ErrInspectionCompleted  = InspectionError{"inspection is completed and can no longer be modified"}
	ErrSignatureRequired    = InspectionError{"a signature is required to complete an inspection"}
	ErrIncompleteAnswers    = InspectionError{"all required questions must be answered before completing"}
	ErrAutoFillConfirmation = InspectionError{"no questions answered; confirmation required to auto-fill"}
	ErrSessionNotFound      = InspectionError{"no open inspection session for facility"}
	ErrSessionAlreadyOpen   = InspectionError{"an inspection session is already open for this facility"}
)
