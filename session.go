package textquiz

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a quiz session
type State int

const (
	StateIdle State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNoQuiz        = errors.New("quiz has no questions")
	ErrNotInProgress = errors.New("no quiz in progress")
	ErrNotCompleted  = errors.New("quiz is not completed")
	ErrInvalidOption = errors.New("option must be between 0 and 3")
	ErrNotAnswered   = errors.New("current question has not been answered")
	ErrCannotFinish  = errors.New("finish is only allowed on the answered last question")
)

// Session holds one user's progress through a quiz. It is not safe for
// concurrent use; see SessionManager.
//
// Answers are always contiguous from question 0: Next requires the current
// question to be answered, so answers[i] exists for every i < index.
type Session struct {
	quiz    *Quiz
	index   int
	answers []int
	state   State
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) State() State { return s.state }

// Quiz returns the loaded quiz, or nil when idle.
func (s *Session) Quiz() *Quiz { return s.quiz }

// Index returns the current question index.
func (s *Session) Index() int { return s.index }

// Load starts quiz from the first question, discarding any previous progress.
func (s *Session) Load(quiz *Quiz) error {
	if quiz == nil || len(quiz.Questions) == 0 {
		return ErrNoQuiz
	}
	s.quiz = quiz
	s.index = 0
	s.answers = nil
	s.state = StateInProgress
	return nil
}

// Current returns the question at the current index.
func (s *Session) Current() (Question, error) {
	if s.state != StateInProgress {
		return Question{}, ErrNotInProgress
	}
	return s.quiz.Questions[s.index], nil
}

// AnswerFor returns the recorded answer for question i.
func (s *Session) AnswerFor(i int) (int, bool) {
	if i < 0 || i >= len(s.answers) {
		return 0, false
	}
	return s.answers[i], true
}

// Answered reports whether the current question has an answer.
func (s *Session) Answered() bool {
	_, ok := s.AnswerFor(s.index)
	return ok
}

// Answer records option for the current question, overwriting an earlier
// answer.
func (s *Session) Answer(option int) error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if option < 0 || option > 3 {
		return ErrInvalidOption
	}
	if s.index < len(s.answers) {
		s.answers[s.index] = option
	} else {
		s.answers = append(s.answers, option)
	}
	return nil
}

// Next moves to the following question. It is a no-op on the last question.
func (s *Session) Next() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if !s.Answered() {
		return ErrNotAnswered
	}
	if s.index < len(s.quiz.Questions)-1 {
		s.index++
	}
	return nil
}

// Previous moves to the preceding question. It is a no-op on the first one.
func (s *Session) Previous() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if s.index > 0 {
		s.index--
	}
	return nil
}

// IsLast reports whether the current question is the last one.
func (s *Session) IsLast() bool {
	return s.quiz != nil && s.index == len(s.quiz.Questions)-1
}

// Finish completes the quiz. Only allowed on the last question once it has
// been answered.
func (s *Session) Finish() error {
	if s.state != StateInProgress {
		return ErrNotInProgress
	}
	if !s.IsLast() || !s.Answered() {
		return ErrCannotFinish
	}
	s.state = StateCompleted
	return nil
}

// Restart clears the session back to idle.
func (s *Session) Restart() {
	*s = Session{}
}

// Progress returns the position as a fraction in (0, 1] for progress bars.
func (s *Session) Progress() float64 {
	if s.quiz == nil || len(s.quiz.Questions) == 0 {
		return 0
	}
	return float64(s.index+1) / float64(len(s.quiz.Questions))
}

// Score is the aggregate result of a completed quiz
type Score struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

func newScore(correct, total int) Score {
	sc := Score{Correct: correct, Total: total}
	if total > 0 {
		sc.Percent = float64(correct) / float64(total) * 100
	}
	return sc
}

// TopicScore is the result for all questions sharing a topic
type TopicScore struct {
	Topic string `json:"topic"`
	Score
}

// QuestionResult is one row of the results table
type QuestionResult struct {
	Number        int    `json:"number"`
	Topic         string `json:"topic"`
	YourAnswer    string `json:"your_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

// Score counts the answers matching the correct option over the number of
// questions.
func (s *Session) Score() (Score, error) {
	if s.state != StateCompleted {
		return Score{}, ErrNotCompleted
	}
	correct := 0
	for i, q := range s.quiz.Questions {
		if ans, ok := s.AnswerFor(i); ok && ans == q.CorrectAnswer {
			correct++
		}
	}
	return newScore(correct, len(s.quiz.Questions)), nil
}

// TopicBreakdown aggregates correctness per topic, in order of first
// appearance.
func (s *Session) TopicBreakdown() ([]TopicScore, error) {
	if s.state != StateCompleted {
		return nil, ErrNotCompleted
	}
	var breakdown []TopicScore
	for i, q := range s.quiz.Questions {
		pos := -1
		for j := range breakdown {
			if breakdown[j].Topic == q.Topic {
				pos = j
				break
			}
		}
		if pos < 0 {
			breakdown = append(breakdown, TopicScore{Topic: q.Topic})
			pos = len(breakdown) - 1
		}
		breakdown[pos].Total++
		if ans, ok := s.AnswerFor(i); ok && ans == q.CorrectAnswer {
			breakdown[pos].Correct++
		}
	}
	for i := range breakdown {
		breakdown[i].Score = newScore(breakdown[i].Correct, breakdown[i].Total)
	}
	return breakdown, nil
}

// Results lists every question with the given and the correct answer.
func (s *Session) Results() ([]QuestionResult, error) {
	if s.state != StateCompleted {
		return nil, ErrNotCompleted
	}
	results := make([]QuestionResult, 0, len(s.quiz.Questions))
	for i, q := range s.quiz.Questions {
		ans, _ := s.AnswerFor(i)
		results = append(results, QuestionResult{
			Number:        i + 1,
			Topic:         q.Topic,
			YourAnswer:    OptionLetter(ans),
			CorrectAnswer: OptionLetter(q.CorrectAnswer),
			Correct:       ans == q.CorrectAnswer,
		})
	}
	return results, nil
}

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 2 * time.Hour

// ErrNoSession is returned by Lookup for unknown or expired keys.
var ErrNoSession = errors.New("no session for key")

type managedSession struct {
	session *Session
	touched time.Time
}

// SessionManager keeps one Session per user key in memory and serializes
// access to them. Sessions untouched for longer than the TTL are swept on
// access.
type SessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*managedSession
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewSessionManager creates a manager. ttl <= 0 uses DefaultSessionTTL.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: make(map[string]*managedSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewKey returns a fresh random session key.
func (m *SessionManager) NewKey() string {
	return uuid.NewString()
}

// With runs fn on the session for key, creating an idle one if needed.
func (m *SessionManager) With(key string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	ms, ok := m.sessions[key]
	if !ok {
		ms = &managedSession{session: NewSession()}
		m.sessions[key] = ms
	}
	ms.touched = now
	return fn(ms.session)
}

// Lookup runs fn on an existing session for key. It never creates one and
// returns ErrNoSession when the key is unknown or expired.
func (m *SessionManager) Lookup(key string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	ms, ok := m.sessions[key]
	if !ok {
		return ErrNoSession
	}
	ms.touched = now
	return fn(ms.session)
}

// Drop forgets the session for key.
func (m *SessionManager) Drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

// Len returns the number of sessions held.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// sweep drops expired sessions, at most once per minute. Callers hold mu.
func (m *SessionManager) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < time.Minute {
		return
	}
	m.lastSweep = now
	for key, ms := range m.sessions {
		if now.Sub(ms.touched) > m.ttl {
			delete(m.sessions, key)
		}
	}
}
