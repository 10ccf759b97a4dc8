package textquiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	titleMaxTokens   = 30
	titleTemperature = 0.7
	// titleSummaryMaxLength bounds the summary the title is derived from.
	titleSummaryMaxLength = 100
	defaultTitle          = "Quiz"
)

// QuizStore archives generated quizzes
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz *Quiz, report GenerationReport) error
}

// QuizGenerator orchestrates preprocessing, extraction, summarization,
// question generation and titling into a Quiz.
type QuizGenerator struct {
	extractor     *ConceptExtractor
	summarizer    *Summarizer
	maker         *QuestionMaker
	generator     TextGenerator
	store         QuizStore
	publisher     Publisher
	transcriptDir string
	logger        *zap.Logger
}

// Option configures optional QuizGenerator collaborators
type Option func(*QuizGenerator)

// WithStore archives every generated quiz in store.
func WithStore(store QuizStore) Option {
	return func(qg *QuizGenerator) { qg.store = store }
}

// WithPublisher publishes a quiz.generated event for every quiz.
func WithPublisher(p Publisher) Option {
	return func(qg *QuizGenerator) { qg.publisher = p }
}

// WithTranscripts writes a model transcript per quiz into dir.
func WithTranscripts(dir string) Option {
	return func(qg *QuizGenerator) { qg.transcriptDir = dir }
}

// WithRandom fixes the topic selection source.
func WithRandom(rng RandomSource) Option {
	return func(qg *QuizGenerator) {
		qg.maker = NewQuestionMaker(qg.generator, qg.summarizer, rng, qg.logger)
	}
}

// NewQuizGenerator wires the pipeline. generator is used for questions and
// titles, summaryModel for summaries and annotator for entity extraction.
func NewQuizGenerator(generator TextGenerator, annotator Annotator, summaryModel SummaryModel, maxConcepts int, logger *zap.Logger, opts ...Option) *QuizGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	summarizer := NewSummarizer(summaryModel, logger)

	qg := &QuizGenerator{
		extractor:  NewConceptExtractor(annotator, maxConcepts),
		summarizer: summarizer,
		maker:      NewQuestionMaker(generator, summarizer, nil, logger),
		generator:  generator,
		publisher:  NopPublisher{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(qg)
	}
	return qg
}

// GenerateQuiz runs the whole pipeline for one request. Any failure outside
// the per-question iterations discards the request. ErrNoQuestions is
// returned when every iteration was skipped.
func (qg *QuizGenerator) GenerateQuiz(ctx context.Context, req GenerationRequest) (*Quiz, GenerationReport, error) {
	req, difficulty, err := req.Normalize()
	if err != nil {
		return nil, GenerationReport{}, err
	}

	quizID := uuid.NewString()
	log := qg.logger.With(zap.String("quiz_id", quizID))
	log.Info("starting quiz generation",
		zap.Int("num_questions", req.NumQuestions),
		zap.String("difficulty", string(difficulty)),
		zap.Int("content_length", len(req.Content)))

	if qg.transcriptDir != "" {
		ll, err := NewLLMLogger(qg.transcriptDir, quizID, req)
		if err != nil {
			log.Warn("transcript disabled", zap.Error(err))
		} else {
			ctx = WithLLMLogger(ctx, ll)
			defer ll.Close()
		}
	}

	text := Preprocess(req.Content)

	entities, concepts, err := qg.extractor.Extract(withStage(ctx, "ConceptExtractor"), text)
	if err != nil {
		return nil, GenerationReport{}, err
	}
	log.Debug("extracted concepts", zap.Strings("labels", entities.Labels()), zap.Strings("concepts", concepts))

	summary, err := qg.summarizer.Summarize(withStage(ctx, "Summarizer"), text, DefaultSummaryMaxLength)
	if err != nil {
		return nil, GenerationReport{}, err
	}

	questions, report, err := qg.maker.GenerateQuestions(withStage(ctx, "QuestionMaker"), GenerateInput{
		Text:       text,
		Entities:   entities,
		Concepts:   concepts,
		Count:      req.NumQuestions,
		Difficulty: difficulty,
		Summary:    summary,
	})
	if err != nil {
		return nil, report, err
	}
	if ll, ok := ctx.Value(llmLoggerKey).(*LLMLogger); ok {
		ll.LogReport(report)
	}
	if len(questions) == 0 {
		return nil, report, ErrNoQuestions
	}

	title, err := qg.generateTitle(withStage(ctx, "Title"), text)
	if err != nil {
		return nil, report, err
	}

	quiz := &Quiz{
		ID:                quizID,
		Title:             title,
		Questions:         questions,
		SourceTextSummary: summary,
		CreatedAt:         time.Now().UTC(),
	}

	if qg.store != nil {
		if err := qg.store.SaveQuiz(ctx, quiz, report); err != nil {
			log.Error("failed to archive quiz", zap.Error(err))
		}
	}
	if err := qg.publisher.Publish(EventQuizGenerated, QuizGeneratedEvent{
		QuizID:    quiz.ID,
		Title:     quiz.Title,
		Requested: report.Requested,
		Produced:  report.Produced,
	}); err != nil {
		log.Error("failed to publish event", zap.String("event", EventQuizGenerated), zap.Error(err))
	}

	log.Info("quiz generation complete", zap.String("title", quiz.Title), zap.Int("questions", len(quiz.Questions)))
	return quiz, report, nil
}

func (qg *QuizGenerator) generateTitle(ctx context.Context, text string) (string, error) {
	short, err := qg.summarizer.Summarize(ctx, text, titleSummaryMaxLength)
	if err != nil {
		return "", err
	}

	resp, err := qg.generator.Complete(ctx,
		[]ChatMessage{User(fmt.Sprintf("Generate a short quiz title for: %s", short))},
		CompletionOptions{MaxTokens: intPtr(titleMaxTokens), Temperature: float32Ptr(titleTemperature)},
	)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp), `"'`))
	if title == "" {
		qg.logger.Warn("empty title response, using default", zap.String("default", defaultTitle))
		return defaultTitle, nil
	}
	return title, nil
}
