// Package app wires the quiz pipeline and its optional collaborators from
// configuration. It is shared by every binary under cmd/.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"textquiz"
	"textquiz/internal/config"
)

// App bundles the generator with the archive and publisher it writes to.
type App struct {
	Generator *textquiz.QuizGenerator
	DB        *textquiz.DB // nil when the archive is disabled
	Publisher textquiz.Publisher

	closers []func()
}

// Build creates the pipeline. Failures to reach RabbitMQ are logged and
// publishing is disabled; a broken archive configuration is fatal.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Publisher: textquiz.NopPublisher{}}

	// annotation and summary calls are recorded in the transcript too
	llm := textquiz.NewTranscriptGenerator(
		textquiz.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model),
	)

	var annotator textquiz.Annotator = textquiz.ProseAnnotator{}
	if cfg.NLP.Annotator == "llm" {
		annotator = textquiz.NewLLMAnnotator(llm)
	}

	opts := []textquiz.Option{}

	if cfg.DB.Driver != "" {
		db, err := textquiz.OpenDB(ctx, cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			return nil, fmt.Errorf("open quiz archive: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, func() { db.Close() })
		opts = append(opts, textquiz.WithStore(db))
	}

	if cfg.AMQP.URL != "" {
		pub, err := textquiz.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, events will not be published", zap.Error(err))
		} else {
			a.Publisher = pub
			a.closers = append(a.closers, pub.Close)
			opts = append(opts, textquiz.WithPublisher(pub))
		}
	}

	if cfg.Transcript.Dir != "" {
		opts = append(opts, textquiz.WithTranscripts(cfg.Transcript.Dir))
	}

	a.Generator = textquiz.NewQuizGenerator(
		llm,
		annotator,
		textquiz.NewLLMSummaryModel(llm),
		cfg.NLP.MaxConcepts,
		logger,
		opts...,
	)
	return a, nil
}

// Close releases the archive and publisher connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
