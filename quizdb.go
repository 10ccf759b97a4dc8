package textquiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "github.com/mattn/go-sqlite3"    // driver: sqlite3
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrQuizNotFound is returned when no archived quiz has the requested ID.
var ErrQuizNotFound = errors.New("quiz not found")

// DB is the quiz archive. Sessions are never stored here.
type DB struct {
	db *sql.DB
}

// QuizSummary is a row of the archive listing
type QuizSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	NumQuestions int       `json:"num_questions"`
	Requested    int       `json:"requested"`
	CreatedAt    time.Time `json:"created_at"`
}

// OpenDB opens the archive with the given driver and creates the tables.
func OpenDB(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = "./quiz.db"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres requires a dsn")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	qdb := &DB{db: db}
	if err := qdb.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return qdb, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source_text_summary TEXT NOT NULL,
			requested INTEGER NOT NULL,
			produced INTEGER NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			quiz_id TEXT NOT NULL REFERENCES quizzes(id),
			question_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer INTEGER NOT NULL,
			explanation TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			topic TEXT NOT NULL,
			PRIMARY KEY (quiz_id, question_num)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveQuiz stores a quiz and its questions in one transaction
func (db *DB) SaveQuiz(ctx context.Context, quiz *Quiz, report GenerationReport) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quizzes (id, title, source_text_summary, requested, produced, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		quiz.ID, quiz.Title, quiz.SourceTextSummary, report.Requested, len(quiz.Questions), quiz.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		optionsJSON, err := OptionsToJSON(q.Options)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (quiz_id, question_num, text, options, correct_answer, explanation, difficulty, topic) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			quiz.ID, i+1, q.Text, optionsJSON, q.CorrectAnswer, q.Explanation, string(q.Difficulty), q.Topic,
		)
		if err != nil {
			return fmt.Errorf("failed to create question %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz: %w", err)
	}
	return nil
}

// GetQuiz loads an archived quiz with its questions in order
func (db *DB) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	var (
		quiz      Quiz
		createdAt int64
	)
	err := db.db.QueryRowContext(ctx,
		`SELECT id, title, source_text_summary, created_at FROM quizzes WHERE id = $1`, id,
	).Scan(&quiz.ID, &quiz.Title, &quiz.SourceTextSummary, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrQuizNotFound, id)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	quiz.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := db.db.QueryContext(ctx,
		`SELECT text, options, correct_answer, explanation, difficulty, topic FROM questions WHERE quiz_id = $1 ORDER BY question_num`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q           Question
			optionsJSON string
			difficulty  string
		)
		if err := rows.Scan(&q.Text, &optionsJSON, &q.CorrectAnswer, &q.Explanation, &difficulty, &q.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Options, err = JSONToOptions(optionsJSON); err != nil {
			return nil, err
		}
		q.Difficulty = Difficulty(difficulty)
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return &quiz, nil
}

// ListQuizzes returns archived quizzes newest first, optionally limited
func (db *DB) ListQuizzes(ctx context.Context, limit int) ([]QuizSummary, error) {
	query := `SELECT id, title, produced, requested, created_at FROM quizzes ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []QuizSummary
	for rows.Next() {
		var (
			s         QuizSummary
			createdAt int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.NumQuestions, &s.Requested, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		quizzes = append(quizzes, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}
	return quizzes, nil
}

// OptionsToJSON converts an options slice to a JSON string
func OptionsToJSON(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// JSONToOptions converts a JSON string back to an options slice
func JSONToOptions(optionsJSON string) ([]string, error) {
	var options []string
	if err := json.Unmarshal([]byte(optionsJSON), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}
