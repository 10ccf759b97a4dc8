package textquiz

import (
	"errors"
	"strings"
	"testing"
)

func TestParseQuestionWellFormed(t *testing.T) {
	q, err := ParseQuestion(wellFormedResponse, "GPE", DifficultyEasy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Text != "What is the capital of France?" {
		t.Errorf("Text = %q", q.Text)
	}
	want := []string{"London", "Paris", "Berlin", "Madrid"}
	if len(q.Options) != len(want) {
		t.Fatalf("got %d options, want 4", len(q.Options))
	}
	for i := range want {
		if q.Options[i] != want[i] {
			t.Errorf("option %d = %q, want %q", i, q.Options[i], want[i])
		}
	}
	if q.CorrectAnswer != 1 {
		t.Errorf("CorrectAnswer = %d, want 1", q.CorrectAnswer)
	}
	if q.Explanation != "Paris is the capital of France." {
		t.Errorf("Explanation = %q", q.Explanation)
	}
	if q.Topic != "GPE" || q.Difficulty != DifficultyEasy {
		t.Errorf("Topic/Difficulty = %q/%q", q.Topic, q.Difficulty)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("parsed question does not validate: %v", err)
	}
}

func TestParseQuestionArithmetic(t *testing.T) {
	q, err := ParseQuestion("Question: What is 2+2?\nA. 3\nB. 4\nC. 5\nD. 6\nCorrect Answer: B\nExplanation: basic arithmetic", GeneralUnderstanding, DifficultyEasy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.CorrectAnswer != 1 || len(q.Options) != 4 {
		t.Errorf("got correct=%d with %d options", q.CorrectAnswer, len(q.Options))
	}
	if q.Explanation != "basic arithmetic" {
		t.Errorf("Explanation = %q", q.Explanation)
	}
}

func TestParseQuestionMalformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
		reason   string
	}{
		{
			name:     "missing option line",
			response: strings.Replace(wellFormedResponse, "C. Berlin\n", "", 1),
			reason:   "expected 4 options, got 3",
		},
		{
			name:     "missing question",
			response: strings.Replace(wellFormedResponse, "Question: What is the capital of France?\n", "", 1),
			reason:   "missing question text",
		},
		{
			name:     "bad answer letter",
			response: strings.Replace(wellFormedResponse, "Correct Answer: B", "Correct Answer: E", 1),
			reason:   "unrecognized correct answer letter",
		},
		{
			name:     "no answer line",
			response: strings.Replace(wellFormedResponse, "Correct Answer: B\n", "", 1),
			reason:   "unrecognized correct answer letter",
		},
		{
			name:     "empty option",
			response: strings.Replace(wellFormedResponse, "C. Berlin", "C.", 1),
			reason:   "option C is empty",
		},
		{
			name:     "blank option",
			response: strings.Replace(wellFormedResponse, "A. London", "A.   ", 1),
			reason:   "option A is empty",
		},
		{
			name:     "free text",
			response: "I'm sorry, I cannot help with that.",
			reason:   "missing question text",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuestion(tc.response, "PERSON", DifficultyMedium)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if perr.Reason != tc.reason {
				t.Errorf("Reason = %q, want %q", perr.Reason, tc.reason)
			}
		})
	}
}

func TestParseQuestionExtraOptionRejected(t *testing.T) {
	resp := strings.Replace(wellFormedResponse, "D. Madrid", "D. Madrid\nA. Rome", 1)
	if _, err := ParseQuestion(resp, "GPE", DifficultyMedium); err == nil {
		t.Fatal("expected error for five options")
	}
}

func TestOptionLetter(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "A"}, {1, "B"}, {2, "C"}, {3, "D"}, {4, "?"}, {-1, "?"},
	}
	for _, tc := range tests {
		if got := OptionLetter(tc.in); got != tc.want {
			t.Errorf("OptionLetter(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
