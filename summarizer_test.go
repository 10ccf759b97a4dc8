package textquiz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSummarizerShortTextUnchanged(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"fifty words", words(50)},
		{"exactly threshold", words(summarizeThreshold)},
		{"odd spacing kept", "  keep   this\tspacing  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeSummaryModel{summary: "should not be used"}
			got, err := NewSummarizer(model, nil).Summarize(context.Background(), tc.text, DefaultSummaryMaxLength)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.text {
				t.Errorf("short text was modified: %q", got)
			}
			if len(model.calls) != 0 {
				t.Errorf("model called %d times for short text", len(model.calls))
			}
		})
	}
}

func TestSummarizerLongText(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		wantMax int
	}{
		{"explicit max", 100, 100},
		{"default max", 0, DefaultSummaryMaxLength},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeSummaryModel{summary: "a summary"}
			text := words(summarizeThreshold + 1)
			got, err := NewSummarizer(model, nil).Summarize(context.Background(), text, tc.max)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "a summary" {
				t.Errorf("got %q", got)
			}
			if len(model.calls) != 1 {
				t.Fatalf("model called %d times, want 1", len(model.calls))
			}
			call := model.calls[0]
			if call.min != SummaryMinLength || call.max != tc.wantMax || call.text != text {
				t.Errorf("model called with min=%d max=%d", call.min, call.max)
			}
		})
	}
}

func TestSummarizerModelFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewSummarizer(&fakeSummaryModel{err: boom}, nil).Summarize(context.Background(), words(150), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestLLMSummaryModel(t *testing.T) {
	gen := staticGenerator("short version")
	got, err := NewLLMSummaryModel(gen).Summarize(context.Background(), "long text", 30, 150)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "short version" {
		t.Errorf("got %q", got)
	}

	opts := gen.calls[0].opts
	if opts.Temperature == nil || *opts.Temperature != 0 {
		t.Error("summaries must decode at temperature 0")
	}
	if opts.MaxTokens == nil || *opts.MaxTokens < 150 {
		t.Errorf("max tokens too small for 150 words: %v", opts.MaxTokens)
	}
	prompt := gen.calls[0].messages[len(gen.calls[0].messages)-1].Content
	if !strings.Contains(prompt, "30 to 150 words") {
		t.Errorf("prompt does not carry the length bounds: %q", prompt)
	}
}
