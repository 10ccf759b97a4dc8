package textquiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// RandomSource picks topics. *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// lockedRand makes a RandomSource safe for concurrent generation requests.
type lockedRand struct {
	mu  sync.Mutex
	src RandomSource
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.IntN(n)
}

// QuestionMaker generates one question per iteration from grounded context
type QuestionMaker struct {
	generator  TextGenerator
	summarizer *Summarizer
	rng        RandomSource
	logger     *zap.Logger
}

// NewQuestionMaker creates a question maker. A nil rng uses a randomly
// seeded source.
func NewQuestionMaker(generator TextGenerator, summarizer *Summarizer, rng RandomSource, logger *zap.Logger) *QuestionMaker {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionMaker{
		generator:  generator,
		summarizer: summarizer,
		rng:        &lockedRand{src: rng},
		logger:     logger,
	}
}

// GenerateInput is everything needed to ground a batch of questions.
type GenerateInput struct {
	Text       string
	Entities   EntityMap
	Concepts   []string
	Count      int
	Difficulty Difficulty
	// Summary of Text; computed when empty.
	Summary string
}

// GenerateQuestions runs Count independent iterations. Iterations whose
// generation or parsing fails are skipped and recorded in the report, so the
// result may hold fewer questions than requested. Only a summarization
// failure aborts the batch.
func (qm *QuestionMaker) GenerateQuestions(ctx context.Context, in GenerateInput) ([]Question, GenerationReport, error) {
	report := GenerationReport{Requested: in.Count}

	summary := in.Summary
	if summary == "" {
		var err error
		summary, err = qm.summarizer.Summarize(ctx, in.Text, DefaultSummaryMaxLength)
		if err != nil {
			return nil, report, err
		}
	}

	topics := append(in.Entities.Labels(), GeneralUnderstanding)
	questions := make([]Question, 0, in.Count)

	for i := 0; i < in.Count; i++ {
		topic := topics[qm.rng.IntN(len(topics))]
		prompt := buildQuestionPrompt(questionContext(topic, summary, in.Entities, in.Concepts), in.Difficulty)

		response, err := qm.generator.Complete(ctx, []ChatMessage{User(prompt)}, CompletionOptions{})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, report, fmt.Errorf("generate questions: %w", ctxErr)
			}
			qm.skip(&report, i, topic, SkipGenerationFailed, err)
			continue
		}

		question, err := ParseQuestion(response, topic, in.Difficulty)
		if err != nil {
			qm.skip(&report, i, topic, SkipMalformedResponse, err)
			continue
		}
		questions = append(questions, question)
	}

	report.Produced = len(questions)
	qm.logger.Info("generated questions",
		zap.Int("requested", report.Requested),
		zap.Int("produced", report.Produced),
		zap.Int("skipped", len(report.Skipped)))
	return questions, report, nil
}

func (qm *QuestionMaker) skip(report *GenerationReport, iteration int, topic string, reason SkipReason, err error) {
	detail := err.Error()
	var perr *ParseError
	if errors.As(err, &perr) {
		detail = perr.Reason
	}
	report.Skipped = append(report.Skipped, SkippedIteration{
		Iteration: iteration,
		Topic:     topic,
		Reason:    reason,
		Detail:    detail,
	})
	qm.logger.Warn("skipping question",
		zap.Int("iteration", iteration),
		zap.String("topic", topic),
		zap.String("reason", string(reason)),
		zap.Error(err))
}

// questionContext picks the grounding text for a topic: the summary for
// General Understanding, else the topic's entities, else the concept list.
func questionContext(topic, summary string, entities EntityMap, concepts []string) string {
	if topic == GeneralUnderstanding {
		return summary
	}
	if texts := entities[topic]; len(texts) > 0 {
		return strings.Join(texts, ", ")
	}
	return strings.Join(concepts, ", ")
}

func buildQuestionPrompt(grounding string, difficulty Difficulty) string {
	var sb strings.Builder

	sb.WriteString("Generate a multiple-choice question based on this context:\n")
	sb.WriteString(fmt.Sprintf("Context: %s\n", grounding))
	sb.WriteString(fmt.Sprintf("Difficulty: %s\n", difficulty))
	sb.WriteString("Format:\n")
	sb.WriteString("Question: [question text]\n")
	sb.WriteString("A. [option1]\n")
	sb.WriteString("B. [option2]\n")
	sb.WriteString("C. [option3]\n")
	sb.WriteString("D. [option4]\n")
	sb.WriteString("Correct Answer: [A, B, C, or D]\n")
	sb.WriteString("Explanation: [explanation]\n")

	return sb.String()
}
