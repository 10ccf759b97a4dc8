package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"textquiz"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sessionName = "quiz-session"
	sessionKey  = "sid"
)

type quizGenerator interface {
	GenerateQuiz(ctx context.Context, req textquiz.GenerationRequest) (*textquiz.Quiz, textquiz.GenerationReport, error)
}

type quizArchive interface {
	GetQuiz(ctx context.Context, id string) (*textquiz.Quiz, error)
	ListQuizzes(ctx context.Context, limit int) ([]textquiz.QuizSummary, error)
}

// Server serves the JSON generation API and the interactive quiz UI
type Server struct {
	generator quizGenerator
	archive   quizArchive // nil when the archive is disabled
	publisher textquiz.Publisher
	store     sessions.Store
	sessions  *textquiz.SessionManager
	templates map[string]*template.Template
	logger    *zap.Logger
}

func NewServer(generator quizGenerator, archive quizArchive, publisher textquiz.Publisher, store sessions.Store, logger *zap.Logger) (*Server, error) {
	if publisher == nil {
		publisher = textquiz.NopPublisher{}
	}
	templates := make(map[string]*template.Template)
	for _, name := range []string{"home", "question", "results"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		templates[name] = tmpl
	}
	return &Server{
		generator: generator,
		archive:   archive,
		publisher: publisher,
		store:     store,
		sessions:  textquiz.NewSessionManager(textquiz.DefaultSessionTTL),
		templates: templates,
		logger:    logger,
	}, nil
}

// Routes builds the router.
func (s *Server) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		api.Post("/generate-quiz", s.handleGenerateQuizAPI)
		api.Post("/generate-quiz/", s.handleGenerateQuizAPI)
		api.Get("/quizzes/{id}", s.handleGetQuizAPI)
	})

	r.Get("/", s.handleHome)
	r.Route("/quiz", func(qr chi.Router) {
		qr.Get("/", s.handleQuiz)
		qr.Post("/generate", s.handleGenerate)
		qr.Post("/load/{id}", s.handleLoad)
		qr.Post("/answer", s.handleAnswer)
		qr.Post("/next", s.sessionAction(func(qs *textquiz.Session) error { return qs.Next() }))
		qr.Post("/previous", s.sessionAction(func(qs *textquiz.Session) error { return qs.Previous() }))
		qr.Post("/finish", s.handleFinish)
		qr.Post("/restart", s.handleRestart)
	})
	return r
}

type generateResponse struct {
	*textquiz.Quiz
	Report textquiz.GenerationReport `json:"report"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleGenerateQuizAPI(w http.ResponseWriter, r *http.Request) {
	var req textquiz.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid JSON body"})
		return
	}

	quiz, report, err := s.generator.GenerateQuiz(r.Context(), req)
	if err != nil {
		status, detail := generationError(err)
		s.logger.Error("quiz generation failed", zap.Error(err), zap.Int("status", status))
		writeJSON(w, status, errorResponse{Detail: detail})
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Quiz: quiz, Report: report})
}

func (s *Server) handleGetQuizAPI(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "quiz archive disabled"})
		return
	}
	quiz, err := s.archive.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, textquiz.ErrQuizNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Detail: "quiz not found"})
			return
		}
		s.logger.Error("failed to load quiz", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// generationError maps a pipeline error to a status and a client-safe message.
func generationError(err error) (int, string) {
	switch {
	case errors.Is(err, textquiz.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, textquiz.ErrNoQuestions):
		return http.StatusInternalServerError, textquiz.ErrNoQuestions.Error()
	}
	return http.StatusInternalServerError, "internal error while generating quiz"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.renderHome(w, r, "", "")
}

func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, content, errMsg string) {
	var quizzes []textquiz.QuizSummary
	if s.archive != nil {
		var err error
		quizzes, err = s.archive.ListQuizzes(r.Context(), 20)
		if err != nil {
			s.logger.Error("failed to list quizzes", zap.Error(err))
		}
	}
	s.render(w, "home", map[string]interface{}{
		"Quizzes":      quizzes,
		"Content":      content,
		"Error":        errMsg,
		"MaxQuestions": textquiz.MaxNumQuestions,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates[name].ExecuteTemplate(w, "base.html", data); err != nil {
		s.logger.Error("template error", zap.String("template", name), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// cookie returns the caller's session cookie. An undecodable cookie yields
// a fresh one.
func (s *Server) cookie(r *http.Request) *sessions.Session {
	cookie, _ := s.store.Get(r, sessionName)
	return cookie
}

func (s *Server) saveCookie(w http.ResponseWriter, r *http.Request, cookie *sessions.Session) {
	if err := cookie.Save(r, w); err != nil {
		s.logger.Error("session save error", zap.Error(err))
	}
}

// existingID returns the session key carried by the cookie, if any.
func existingID(cookie *sessions.Session) (string, bool) {
	id, ok := cookie.Values[sessionKey].(string)
	return id, ok && id != ""
}

// issueID returns the cookie's session key, assigning a new one when the
// cookie has none. Only generate and load call it.
func (s *Server) issueID(cookie *sessions.Session) string {
	if id, ok := existingID(cookie); ok {
		return id
	}
	id := s.sessions.NewKey()
	cookie.Values[sessionKey] = id
	return id
}

// startQuiz loads quiz into the caller's session and redirects to it.
func (s *Server) startQuiz(w http.ResponseWriter, r *http.Request, quiz *textquiz.Quiz, notice string) error {
	if quiz == nil || len(quiz.Questions) == 0 {
		return textquiz.ErrNoQuiz
	}
	cookie := s.cookie(r)
	id := s.issueID(cookie)
	if err := s.sessions.With(id, func(qs *textquiz.Session) error { return qs.Load(quiz) }); err != nil {
		return err
	}
	if notice != "" {
		cookie.AddFlash(notice)
	}
	s.saveCookie(w, r, cookie)
	http.Redirect(w, r, "/quiz/", http.StatusSeeOther)
	return nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	numQuestions, _ := strconv.Atoi(r.FormValue("num_questions"))
	req := textquiz.GenerationRequest{
		Content:      r.FormValue("content"),
		NumQuestions: numQuestions,
		Difficulty:   r.FormValue("difficulty"),
	}

	quiz, report, err := s.generator.GenerateQuiz(r.Context(), req)
	if err != nil {
		_, detail := generationError(err)
		s.logger.Error("quiz generation failed", zap.Error(err))
		s.renderHome(w, r, req.Content, detail)
		return
	}

	var notice string
	if report.Produced < report.Requested {
		notice = fmt.Sprintf("Only %d of %d requested questions could be generated.", report.Produced, report.Requested)
	}
	if err := s.startQuiz(w, r, quiz, notice); err != nil {
		s.logger.Error("failed to start quiz", zap.String("quiz_id", quiz.ID), zap.Error(err))
		s.renderHome(w, r, req.Content, err.Error())
	}
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.NotFound(w, r)
		return
	}
	quiz, err := s.archive.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := s.startQuiz(w, r, quiz, ""); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
	}
}

type optionView struct {
	Index    int
	Letter   string
	Text     string
	Selected bool
	Correct  bool
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	s.renderQuiz(w, r, "")
}

func (s *Server) renderQuiz(w http.ResponseWriter, r *http.Request, errMsg string) {
	cookie := s.cookie(r)
	id, ok := existingID(cookie)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	var (
		name string
		data map[string]interface{}
	)
	err := s.sessions.Lookup(id, func(qs *textquiz.Session) error {
		switch qs.State() {
		case textquiz.StateIdle:
			return textquiz.ErrNotInProgress
		case textquiz.StateCompleted:
			name, data = "results", resultsView(qs)
			return nil
		}
		q, err := qs.Current()
		if err != nil {
			return err
		}
		answer, answered := qs.AnswerFor(qs.Index())
		options := make([]optionView, len(q.Options))
		for i, text := range q.Options {
			options[i] = optionView{
				Index:    i,
				Letter:   textquiz.OptionLetter(i),
				Text:     text,
				Selected: answered && answer == i,
				Correct:  answered && q.CorrectAnswer == i,
			}
		}
		name = "question"
		data = map[string]interface{}{
			"Title":    qs.Quiz().Title,
			"Summary":  qs.Quiz().SourceTextSummary,
			"Number":   qs.Index() + 1,
			"Total":    len(qs.Quiz().Questions),
			"Progress": int(qs.Progress() * 100),
			"Question": q,
			"Options":  options,
			"Answered": answered,
			"IsFirst":  qs.Index() == 0,
			"IsLast":   qs.IsLast(),
			"Error":    errMsg,
		}
		return nil
	})
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if flashes := cookie.Flashes(); len(flashes) > 0 {
		if notice, ok := flashes[0].(string); ok {
			data["Notice"] = notice
		}
		s.saveCookie(w, r, cookie)
	}
	s.render(w, name, data)
}

func resultsView(qs *textquiz.Session) map[string]interface{} {
	score, _ := qs.Score()
	results, _ := qs.Results()
	topics, _ := qs.TopicBreakdown()
	return map[string]interface{}{
		"Title":   qs.Quiz().Title,
		"Score":   score,
		"Results": results,
		"Topics":  topics,
	}
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	option, err := strconv.Atoi(r.FormValue("option"))
	if err != nil {
		option = -1
	}
	s.sessionAction(func(qs *textquiz.Session) error { return qs.Answer(option) })(w, r)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var completed *textquiz.QuizCompletedEvent
	s.sessionAction(func(qs *textquiz.Session) error {
		if err := qs.Finish(); err != nil {
			return err
		}
		score, _ := qs.Score()
		completed = &textquiz.QuizCompletedEvent{
			QuizID:  qs.Quiz().ID,
			Correct: score.Correct,
			Total:   score.Total,
			Percent: score.Percent,
		}
		return nil
	})(w, r)

	if completed == nil {
		return
	}
	if err := s.publisher.Publish(textquiz.EventQuizCompleted, *completed); err != nil {
		s.logger.Error("failed to publish event", zap.String("event", textquiz.EventQuizCompleted), zap.Error(err))
	}
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if id, ok := existingID(s.cookie(r)); ok {
		s.sessions.Drop(id)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// sessionAction applies a transition to the caller's existing session and
// shows the resulting page. Rejected transitions are rendered as an inline
// error.
func (s *Server) sessionAction(fn func(*textquiz.Session) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := existingID(s.cookie(r))
		if !ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		err := s.sessions.Lookup(id, fn)
		switch {
		case errors.Is(err, textquiz.ErrNoSession):
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case err == nil || errors.Is(err, textquiz.ErrNotInProgress):
			http.Redirect(w, r, "/quiz/", http.StatusSeeOther)
		default:
			s.renderQuiz(w, r, err.Error())
		}
	}
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
