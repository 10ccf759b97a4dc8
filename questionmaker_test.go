package textquiz

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestGenerateQuestions(t *testing.T) {
	entities := EntityMap{"GPE": {"Paris", "France"}, "PERSON": {"Napoleon"}}

	tests := []struct {
		name        string
		count       int
		respond     func(call int, _ []ChatMessage) (string, error)
		wantCount   int
		wantSkipped []SkipReason
	}{
		{
			name:      "all succeed",
			count:     5,
			respond:   func(int, []ChatMessage) (string, error) { return wellFormedResponse, nil },
			wantCount: 5,
		},
		{
			name:  "malformed responses skipped",
			count: 4,
			respond: func(call int, _ []ChatMessage) (string, error) {
				if call%2 == 1 {
					return "Question: broken\nA. only one", nil
				}
				return wellFormedResponse, nil
			},
			wantCount:   2,
			wantSkipped: []SkipReason{SkipMalformedResponse, SkipMalformedResponse},
		},
		{
			name:  "generation failures skipped",
			count: 3,
			respond: func(call int, _ []ChatMessage) (string, error) {
				if call == 0 {
					return "", errors.New("rate limited")
				}
				return wellFormedResponse, nil
			},
			wantCount:   2,
			wantSkipped: []SkipReason{SkipGenerationFailed},
		},
		{
			name:        "everything fails",
			count:       2,
			respond:     func(int, []ChatMessage) (string, error) { return "nope", nil },
			wantCount:   0,
			wantSkipped: []SkipReason{SkipMalformedResponse, SkipMalformedResponse},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{respond: tc.respond}
			qm := NewQuestionMaker(gen, NewSummarizer(&fakeSummaryModel{}, nil), rand.New(rand.NewPCG(1, 2)), nil)

			questions, report, err := qm.GenerateQuestions(context.Background(), GenerateInput{
				Text:       "Napoleon was crowned in Paris.",
				Entities:   entities,
				Count:      tc.count,
				Difficulty: DifficultyHard,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(questions) != tc.wantCount {
				t.Fatalf("got %d questions, want %d", len(questions), tc.wantCount)
			}
			if len(questions) > tc.count {
				t.Errorf("more questions than requested")
			}
			if len(gen.calls) != tc.count {
				t.Errorf("generator called %d times, want one call per iteration (%d)", len(gen.calls), tc.count)
			}
			if report.Requested != tc.count || report.Produced != tc.wantCount {
				t.Errorf("report = %+v", report)
			}
			if len(report.Skipped) != len(tc.wantSkipped) {
				t.Fatalf("skipped = %+v, want reasons %v", report.Skipped, tc.wantSkipped)
			}
			for i, s := range report.Skipped {
				if s.Reason != tc.wantSkipped[i] {
					t.Errorf("skip %d reason = %s, want %s", i, s.Reason, tc.wantSkipped[i])
				}
				if s.Detail == "" {
					t.Errorf("skip %d has no detail", i)
				}
			}

			valid := map[string]bool{"GPE": true, "PERSON": true, GeneralUnderstanding: true}
			for _, q := range questions {
				if err := q.Validate(); err != nil {
					t.Errorf("invalid question: %v", err)
				}
				if !valid[q.Topic] {
					t.Errorf("unexpected topic %q", q.Topic)
				}
				if q.Difficulty != DifficultyHard {
					t.Errorf("difficulty = %q", q.Difficulty)
				}
			}
		})
	}
}

func TestGenerateQuestionsGrounding(t *testing.T) {
	entities := EntityMap{"GPE": {"Paris", "France"}}
	concepts := []string{"the coronation", "the empire"}
	summary := "Napoleon crowned himself emperor."

	// Labels sorted: [GPE, General Understanding]
	tests := []struct {
		name     string
		entities EntityMap
		pick     int
		want     string
		topic    string
	}{
		{"entity topic uses entity texts", entities, 0, "Context: Paris, France\n", "GPE"},
		{"general understanding uses summary", entities, 1, "Context: " + summary + "\n", GeneralUnderstanding},
		{"no entities falls back to summary topic", EntityMap{}, 0, "Context: " + summary + "\n", GeneralUnderstanding},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := staticGenerator(wellFormedResponse)
			qm := NewQuestionMaker(gen, NewSummarizer(&fakeSummaryModel{}, nil), &seqRand{vals: []int{tc.pick}}, nil)
			questions, _, err := qm.GenerateQuestions(context.Background(), GenerateInput{
				Text:       "text",
				Entities:   tc.entities,
				Concepts:   concepts,
				Count:      1,
				Difficulty: DifficultyMedium,
				Summary:    summary,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			prompt := gen.calls[0].messages[0].Content
			if !strings.Contains(prompt, tc.want) {
				t.Errorf("prompt %q does not contain %q", prompt, tc.want)
			}
			if !strings.Contains(prompt, "Difficulty: medium\n") {
				t.Errorf("prompt misses difficulty: %q", prompt)
			}
			if questions[0].Topic != tc.topic {
				t.Errorf("topic = %q, want %q", questions[0].Topic, tc.topic)
			}
		})
	}
}

func TestQuestionContextConceptFallback(t *testing.T) {
	got := questionContext("ORG", "summary", EntityMap{"ORG": nil}, []string{"a", "b"})
	if got != "a, b" {
		t.Errorf("questionContext = %q, want concept list", got)
	}
}

func TestGenerateQuestionsSummarizesWhenMissing(t *testing.T) {
	model := &fakeSummaryModel{summary: "computed summary"}
	gen := staticGenerator(wellFormedResponse)
	qm := NewQuestionMaker(gen, NewSummarizer(model, nil), &seqRand{vals: []int{0}}, nil)

	_, _, err := qm.GenerateQuestions(context.Background(), GenerateInput{
		Text:  words(200),
		Count: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.calls) != 1 || model.calls[0].max != DefaultSummaryMaxLength {
		t.Fatalf("summary model calls = %+v", model.calls)
	}
	if !strings.Contains(gen.calls[0].messages[0].Content, "computed summary") {
		t.Error("prompt is not grounded on the computed summary")
	}
}

func TestGenerateQuestionsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	qm := NewQuestionMaker(staticGenerator(wellFormedResponse), NewSummarizer(&fakeSummaryModel{}, nil), nil, nil)
	_, _, err := qm.GenerateQuestions(ctx, GenerateInput{Text: "t", Count: 3, Summary: "s"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
