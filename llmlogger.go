package textquiz

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes a per-quiz transcript of every model interaction
type LLMLogger struct {
	file   *os.File
	mu     sync.Mutex
	quizID string
}

// NewLLMLogger creates the transcript file <dir>/<quizID>.log
func NewLLMLogger(dir, quizID string, req GenerationRequest) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", quizID))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}

	ll := &LLMLogger{
		file:   file,
		quizID: quizID,
	}

	ll.Logf("=== Quiz Generation Transcript ===\n")
	ll.Logf("Quiz ID: %s\n", quizID)
	ll.Logf("Number of Questions: %d\n", req.NumQuestions)
	ll.Logf("Difficulty: %s\n", req.Difficulty)
	ll.Logf("Content Length: %d characters\n", len(req.Content))
	ll.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	ll.Logf("==================================\n\n")

	return ll, nil
}

// Logf writes a formatted entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf(format, args...)
}

func (ll *LLMLogger) logf(format string, args ...interface{}) {
	if ll.file == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogLLMRequest logs the messages sent for a pipeline stage
func (ll *LLMLogger) LogLLMRequest(stage string, messages []ChatMessage) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf("=== LLM REQUEST (%s) ===\n", stage)
	for _, m := range messages {
		ll.logf("[%s]\n%s\n", m.Role, m.Content)
	}
	ll.logf("=====================\n\n")
}

// LogLLMResponse logs a model response, or the error in its place
func (ll *LLMLogger) LogLLMResponse(stage, response string, err error) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.logf("=== LLM RESPONSE (%s) ===\n", stage)
	if err != nil {
		ll.logf("Error: %v\n", err)
	} else {
		ll.logf("Response:\n%s\n", response)
	}
	ll.logf("======================\n\n")
}

// LogReport logs the outcome of the question iterations
func (ll *LLMLogger) LogReport(report GenerationReport) {
	ll.Logf("Produced %d of %d questions\n", report.Produced, report.Requested)
	for _, s := range report.Skipped {
		ll.Logf("Iteration %d (%s): SKIPPED %s - %s\n", s.Iteration, s.Topic, s.Reason, s.Detail)
	}
}

// Close closes the transcript file
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	ll.logf("=== Quiz Generation Complete ===\n")
	ll.logf("Completed: %s\n", time.Now().Format(time.RFC3339))
	err := ll.file.Close()
	ll.file = nil
	return err
}

type ctxKey int

const (
	llmLoggerKey ctxKey = iota
	stageKey
)

// WithLLMLogger attaches a transcript to ctx; model calls made with the
// returned context through a TranscriptGenerator are recorded in it.
func WithLLMLogger(ctx context.Context, ll *LLMLogger) context.Context {
	return context.WithValue(ctx, llmLoggerKey, ll)
}

// withStage labels the model calls made with ctx.
func withStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// TranscriptGenerator records requests and responses in the transcript
// carried by the context, if there is one.
type TranscriptGenerator struct {
	next TextGenerator
}

// NewTranscriptGenerator wraps next.
func NewTranscriptGenerator(next TextGenerator) *TranscriptGenerator {
	return &TranscriptGenerator{next: next}
}

func (g *TranscriptGenerator) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	ll, _ := ctx.Value(llmLoggerKey).(*LLMLogger)
	if ll == nil {
		return g.next.Complete(ctx, messages, opts)
	}

	stage, _ := ctx.Value(stageKey).(string)
	if stage == "" {
		stage = "Unlabeled"
	}
	ll.LogLLMRequest(stage, messages)
	resp, err := g.next.Complete(ctx, messages, opts)
	ll.LogLLMResponse(stage, resp, err)
	return resp, err
}
