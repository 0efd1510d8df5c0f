package models

// QuestionType distinguishes gated yes/no/na questions from free-text ones
type QuestionType string

const (
	// QuestionGated expects a yes/no/na answer
	QuestionGated QuestionType = "gated"
	// QuestionComment is comment-only; its answer stays empty
	QuestionComment QuestionType = "comment"
)

// Question is one checklist item definition, owned by the template subsystem
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Optional bool         `json:"optional"`
	Position int          `json:"position"`
}

// Required reports whether the question gates completion. Comment-only and
// template-declared optional questions never do.
func (q *Question) Required() bool {
	return q.Type == QuestionGated && !q.Optional
}

// Template is an ordered checklist definition, read-only to this engine
type Template struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Questions []*Question `json:"questions"`
}

// RequiredQuestions returns the questions whose answers gate completion
func (t *Template) RequiredQuestions() []*Question {
	var required []*Question
	for _, q := range t.Questions {
		if q.Required() {
			required = append(required, q)
		}
	}
	return required
}

// HasQuestion reports whether the template contains the question id
func (t *Template) HasQuestion(questionID string) bool {
	for _, q := range t.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// Valid reports whether the template can back an inspection form
func (t *Template) Valid() bool {
	return t != nil && len(t.Questions) > 0
}

var (
	ErrTemplateNotFound = InspectionError{"template not found"}
	ErrTemplateEmpty    = InspectionError{"template has no questions"}
)
