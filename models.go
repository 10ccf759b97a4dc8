package textquiz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GeneralUnderstanding is the topic used for questions grounded on the
// whole-text summary instead of a single entity label.
const GeneralUnderstanding = "General Understanding"

// Difficulty is the requested difficulty of a generated question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps a user supplied label onto a Difficulty. An empty
// label means medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case "", DifficultyMedium:
		return DifficultyMedium, nil
	case DifficultyEasy:
		return DifficultyEasy, nil
	case DifficultyHard:
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, s)
}

// Question represents a single multiple choice question with four options
type Question struct {
	Text          string     `json:"question_text"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correct_answer"` // 0-based index
	Explanation   string     `json:"explanation"`
	Difficulty    Difficulty `json:"difficulty"`
	Topic         string     `json:"topic"`
}

// Validate checks the structural invariants of a parsed question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("empty question text")
	}
	if len(q.Options) != 4 {
		return fmt.Errorf("expected 4 options, got %d", len(q.Options))
	}
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %c is empty", 'A'+i)
		}
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("correct answer %d out of range", q.CorrectAnswer)
	}
	return nil
}

// Quiz represents a complete generated quiz
type Quiz struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Questions         []Question `json:"questions"`
	SourceTextSummary string     `json:"source_text_summary"`
	CreatedAt         time.Time  `json:"created_at"`
}

// EntityMap groups entity texts by their entity label
type EntityMap map[string][]string

// Labels returns the entity labels in a stable order.
func (m EntityMap) Labels() []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// GenerationRequest is the input of a quiz generation call
type GenerationRequest struct {
	Content      string `json:"content"`
	NumQuestions int    `json:"num_questions"`
	Difficulty   string `json:"difficulty"`
}

const (
	DefaultNumQuestions = 5
	MaxNumQuestions     = 20
)

// Normalize applies defaults and validates the request.
func (r GenerationRequest) Normalize() (GenerationRequest, Difficulty, error) {
	if strings.TrimSpace(r.Content) == "" {
		return r, "", fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}
	if r.NumQuestions == 0 {
		r.NumQuestions = DefaultNumQuestions
	}
	if r.NumQuestions < 0 || r.NumQuestions > MaxNumQuestions {
		return r, "", fmt.Errorf("%w: num_questions must be between 1 and %d", ErrInvalidRequest, MaxNumQuestions)
	}
	difficulty, err := ParseDifficulty(r.Difficulty)
	if err != nil {
		return r, "", err
	}
	r.Difficulty = string(difficulty)
	return r, difficulty, nil
}

// SkipReason classifies why a generation iteration produced no question
type SkipReason string

const (
	SkipGenerationFailed  SkipReason = "generation_failed"
	SkipMalformedResponse SkipReason = "malformed_response"
)

// SkippedIteration records a generation iteration that yielded no question
type SkippedIteration struct {
	Iteration int        `json:"iteration"`
	Topic     string     `json:"topic"`
	Reason    SkipReason `json:"reason"`
	Detail    string     `json:"detail"`
}

// GenerationReport summarizes how many of the requested questions were
// actually produced.
type GenerationReport struct {
	Requested int                `json:"requested"`
	Produced  int                `json:"produced"`
	Skipped   []SkippedIteration `json:"skipped,omitempty"`
}

var (
	// ErrInvalidRequest marks caller errors in a generation request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoQuestions is returned when every generation iteration was skipped.
	ErrNoQuestions = errors.New("no questions could be generated")
)
