package textquiz

import (
	"fmt"
	"strings"
)

// ParseError explains why a model response could not be turned into a
// Question.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "malformed question response: " + e.Reason
}

var answerLetters = map[string]int{"A": 0, "B": 1, "C": 2, "D": 3}

// ParseQuestion decodes a response that follows the question template:
//
//	Question: ...
//	A. ...
//	B. ...
//	C. ...
//	D. ...
//	Correct Answer: B
//	Explanation: ...
//
// It returns a *ParseError when the question text is missing, the option
// count is not exactly four, an option is blank, or the answer letter is
// not one of A-D.
func ParseQuestion(response, topic string, difficulty Difficulty) (Question, error) {
	var (
		text        string
		options     []string
		correct     = -1
		explanation string
	)

	for _, line := range strings.Split(response, "\n") {
		switch {
		case strings.HasPrefix(line, "Question:"):
			text = strings.TrimSpace(strings.TrimPrefix(line, "Question:"))
		case isOptionLine(line):
			options = append(options, strings.TrimSpace(line[2:]))
		case strings.HasPrefix(line, "Correct Answer:"):
			letter := strings.TrimSpace(strings.TrimPrefix(line, "Correct Answer:"))
			if idx, ok := answerLetters[letter]; ok {
				correct = idx
			} else {
				correct = -1
			}
		case strings.HasPrefix(line, "Explanation:"):
			explanation = strings.TrimSpace(strings.TrimPrefix(line, "Explanation:"))
		}
	}

	switch {
	case text == "":
		return Question{}, &ParseError{Reason: "missing question text"}
	case len(options) != 4:
		return Question{}, &ParseError{Reason: fmt.Sprintf("expected 4 options, got %d", len(options))}
	case correct < 0:
		return Question{}, &ParseError{Reason: "unrecognized correct answer letter"}
	}

	q := Question{
		Text:          text,
		Options:       options,
		CorrectAnswer: correct,
		Explanation:   explanation,
		Difficulty:    difficulty,
		Topic:         topic,
	}
	if err := q.Validate(); err != nil {
		return Question{}, &ParseError{Reason: err.Error()}
	}
	return q, nil
}

func isOptionLine(line string) bool {
	if len(line) < 2 || line[1] != '.' {
		return false
	}
	switch line[0] {
	case 'A', 'B', 'C', 'D':
		return true
	}
	return false
}

// OptionLetter returns the letter (A-D) for a 0-based option index.
func OptionLetter(i int) string {
	if i < 0 || i > 3 {
		return "?"
	}
	return string(rune('A' + i))
}
