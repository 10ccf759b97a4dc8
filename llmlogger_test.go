package textquiz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranscriptGenerator(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	ll, err := NewLLMLogger(dir, "quiz-1", GenerationRequest{Content: "abc", NumQuestions: 2, Difficulty: "hard"})
	if err != nil {
		t.Fatalf("NewLLMLogger: %v", err)
	}

	calls := 0
	gen := NewTranscriptGenerator(&fakeGenerator{respond: func(int, []ChatMessage) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("upstream timeout")
		}
		return "the answer", nil
	}})

	ctx := WithLLMLogger(context.Background(), ll)
	if _, err := gen.Complete(withStage(ctx, "Summarizer"), []ChatMessage{User("summarize me")}, CompletionOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := gen.Complete(ctx, []ChatMessage{System("sys"), User("again")}, CompletionOptions{}); err == nil {
		t.Fatal("expected error to pass through")
	}
	ll.LogReport(GenerationReport{Requested: 2, Produced: 1, Skipped: []SkippedIteration{
		{Iteration: 1, Topic: "GPE", Reason: SkipMalformedResponse, Detail: "expected 4 options, got 2"},
	}})
	if err := ll.Close(); err != nil {
		t.Fatal(err)
	}
	// writes after close are dropped
	ll.Logf("late\n")

	data, err := os.ReadFile(filepath.Join(dir, "quiz-1.log"))
	if err != nil {
		t.Fatal(err)
	}
	transcript := string(data)
	for _, want := range []string{
		"Quiz ID: quiz-1",
		"Number of Questions: 2",
		"Difficulty: hard",
		"Content Length: 3 characters",
		"=== LLM REQUEST (Summarizer) ===",
		"summarize me",
		"Response:\nthe answer",
		"=== LLM REQUEST (Unlabeled) ===",
		"[system]\nsys",
		"Error: upstream timeout",
		"Iteration 1 (GPE): SKIPPED malformed_response - expected 4 options, got 2",
	} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript missing %q", want)
		}
	}
	if strings.Contains(transcript, "late") {
		t.Error("write after close reached the file")
	}
}

func TestTranscriptGeneratorWithoutLogger(t *testing.T) {
	gen := NewTranscriptGenerator(staticGenerator("ok"))
	resp, err := gen.Complete(context.Background(), []ChatMessage{User("hi")}, CompletionOptions{})
	if err != nil || resp != "ok" {
		t.Fatalf("got %q, %v", resp, err)
	}
}
