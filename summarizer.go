package textquiz

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	// DefaultSummaryMaxLength is the default upper bound of a summary.
	DefaultSummaryMaxLength = 150
	// SummaryMinLength is the fixed lower bound of a summary.
	SummaryMinLength = 30
	// summarizeThreshold is the word count at or below which text is
	// returned as is.
	summarizeThreshold = 100
)

// SummaryModel is the external abstractive summarization capability. It must
// decode deterministically.
type SummaryModel interface {
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
}

// Summarizer shortens long text and leaves short text untouched.
type Summarizer struct {
	model  SummaryModel
	logger *zap.Logger
}

// NewSummarizer creates a summarizer on top of model.
func NewSummarizer(model SummaryModel, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{model: model, logger: logger}
}

// Summarize returns text unchanged when it has at most 100 words, otherwise
// a summary bounded by [SummaryMinLength, maxLength]. maxLength <= 0 uses
// DefaultSummaryMaxLength.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	words := wordCount(text)
	if words <= summarizeThreshold {
		return text, nil
	}
	if maxLength <= 0 {
		maxLength = DefaultSummaryMaxLength
	}

	s.logger.Debug("summarizing text", zap.Int("words", words), zap.Int("max_length", maxLength))
	summary, err := s.model.Summarize(ctx, text, SummaryMinLength, maxLength)
	if err != nil {
		return "", fmt.Errorf("summarize text: %w", err)
	}
	return summary, nil
}

// LLMSummaryModel implements SummaryModel with the text generator at zero
// temperature.
type LLMSummaryModel struct {
	generator TextGenerator
}

// NewLLMSummaryModel creates a summary model backed by generator.
func NewLLMSummaryModel(generator TextGenerator) *LLMSummaryModel {
	return &LLMSummaryModel{generator: generator}
}

// Summarize asks for a summary between minLength and maxLength words.
func (m *LLMSummaryModel) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	prompt := fmt.Sprintf("Summarize the following text in %d to %d words. "+
		"Reply with the summary only.\n\nText:\n%s", minLength, maxLength, text)

	// roughly 4 tokens per 3 words, with headroom
	maxTokens := maxLength*2 + 16
	return m.generator.Complete(ctx, []ChatMessage{
		System("You are an abstractive summarizer. Be faithful to the source text."),
		User(prompt),
	}, CompletionOptions{MaxTokens: intPtr(maxTokens), Temperature: float32Ptr(0)})
}
