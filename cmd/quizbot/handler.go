package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"textquiz"
)

const (
	msgWelcome = "Send me any text and I will turn it into a multiple choice quiz.\n\n" +
		"Answer with the buttons under each question, then press <b>Finish</b> on the last one to see your score."
	msgGenerating = "⏳ Generating quiz... (this may take a moment)"
	msgRestarted  = "Quiz dropped. Send me some text to start a new one."
	msgNoQuiz     = "There is no quiz in progress. Send me some text to start one."
)

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type quizGenerator interface {
	GenerateQuiz(ctx context.Context, req textquiz.GenerationRequest) (*textquiz.Quiz, textquiz.GenerationReport, error)
}

// Handler turns chat messages into quizzes and drives one Session per chat
// from inline keyboard callbacks.
type Handler struct {
	bot       botAPI
	generator quizGenerator
	publisher textquiz.Publisher
	sessions  *textquiz.SessionManager
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewHandler(bot botAPI, generator quizGenerator, publisher textquiz.Publisher, logger *zap.Logger) *Handler {
	if publisher == nil {
		publisher = textquiz.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		bot:       bot,
		generator: generator,
		publisher: publisher,
		sessions:  textquiz.NewSessionManager(textquiz.DefaultSessionTTL),
		logger:    logger,
	}
}

// Run consumes updates until ctx is cancelled. Each update is handled in its
// own goroutine so a slow generation does not block other chats.
func (h *Handler) Run(ctx context.Context) error {
	h.logger.Info("telegram handler started")
	defer h.logger.Info("telegram handler stopped")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := h.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			h.wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				h.wg.Wait()
				return nil
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				h.handleUpdate(ctx, update)
			}()
		}
	}
}

func (h *Handler) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		h.logger.Debug("callback received",
			zap.Int64("user_id", update.CallbackQuery.From.ID),
			zap.String("data", update.CallbackQuery.Data),
		)
		h.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	if update.Message.IsCommand() {
		switch update.Message.Command() {
		case "start", "help":
			h.send(newHTMLMessage(chatID, msgWelcome))
		case "restart":
			h.sessions.Drop(chatKey(chatID))
			h.send(newHTMLMessage(chatID, msgRestarted))
		default:
			h.send(newHTMLMessage(chatID, "Unknown command."))
		}
		return
	}

	if strings.TrimSpace(update.Message.Text) == "" {
		return
	}
	h.generate(ctx, chatID, update.Message.Text)
}

func (h *Handler) generate(ctx context.Context, chatID int64, content string) {
	h.send(newHTMLMessage(chatID, msgGenerating))

	quiz, report, err := h.generator.GenerateQuiz(ctx, textquiz.GenerationRequest{Content: content})
	if err != nil {
		h.logger.Error("quiz generation failed", zap.Int64("chat_id", chatID), zap.Error(err))
		h.send(newHTMLMessage(chatID, "❌ "+html.EscapeString(generationError(err))))
		return
	}

	if len(quiz.Questions) == 0 {
		h.send(newHTMLMessage(chatID, "❌ "+html.EscapeString(textquiz.ErrNoQuiz.Error())))
		return
	}

	var text string
	var kb *tgbotapi.InlineKeyboardMarkup
	err = h.sessions.With(chatKey(chatID), func(qs *textquiz.Session) error {
		if err := qs.Load(quiz); err != nil {
			return err
		}
		text, kb = renderSession(qs, "")
		return nil
	})
	if err != nil {
		h.send(newHTMLMessage(chatID, "❌ "+html.EscapeString(err.Error())))
		return
	}

	intro := fmt.Sprintf("🎯 <b>%s</b>", html.EscapeString(quiz.Title))
	if report.Produced < report.Requested {
		intro += fmt.Sprintf("\n📝 %d of %d requested questions could be generated", report.Produced, report.Requested)
	}
	h.send(newHTMLMessage(chatID, intro))

	msg := newHTMLMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	h.send(msg)
}

func generationError(err error) string {
	switch {
	case errors.Is(err, textquiz.ErrInvalidRequest):
		return err.Error()
	case errors.Is(err, textquiz.ErrNoQuestions):
		return "No questions could be generated from this text. Try a longer or more detailed passage."
	}
	return "Something went wrong while generating the quiz. Please try again."
}

func (h *Handler) handleCallback(cb *tgbotapi.CallbackQuery) {
	defer func() {
		// Remove the user's "clock".
		if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			h.logger.Warn("callback answer error", zap.Error(err))
		}
	}()
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, err := parseCallback(cb.Data)
	if err != nil {
		h.logger.Warn("invalid callback data", zap.String("data", cb.Data), zap.Error(err))
		return
	}

	var (
		text      string
		kb        *tgbotapi.InlineKeyboardMarkup
		completed *textquiz.QuizCompletedEvent
	)
	if action.kind == actionRestart {
		h.sessions.Drop(chatKey(chatID))
		h.editMessage(chatID, cb.Message.MessageID, msgRestarted, nil)
		return
	}
	err = h.sessions.Lookup(chatKey(chatID), func(qs *textquiz.Session) error {
		var errMsg string
		if err := action.apply(qs); err != nil {
			if errors.Is(err, textquiz.ErrNotInProgress) {
				return err
			}
			errMsg = err.Error()
		}
		if action.kind == actionFinish && qs.State() == textquiz.StateCompleted && errMsg == "" {
			score, _ := qs.Score()
			completed = &textquiz.QuizCompletedEvent{
				QuizID:  qs.Quiz().ID,
				Correct: score.Correct,
				Total:   score.Total,
				Percent: score.Percent,
			}
		}
		text, kb = renderSession(qs, errMsg)
		return nil
	})
	if err != nil {
		text, kb = msgNoQuiz, nil
	}

	if completed != nil {
		if err := h.publisher.Publish(textquiz.EventQuizCompleted, *completed); err != nil {
			h.logger.Error("failed to publish event", zap.String("event", textquiz.EventQuizCompleted), zap.Error(err))
		}
	}

	h.editMessage(chatID, cb.Message.MessageID, text, kb)
}

func (h *Handler) editMessage(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	h.send(edit)
}

type actionKind int

const (
	actionAnswer actionKind = iota
	actionNext
	actionPrevious
	actionFinish
	actionRestart
)

type callbackAction struct {
	kind   actionKind
	option int
}

// parseCallback decodes inline keyboard data: "answer:N", "next", "prev",
// "finish" or "restart".
func parseCallback(data string) (callbackAction, error) {
	switch data {
	case "next":
		return callbackAction{kind: actionNext}, nil
	case "prev":
		return callbackAction{kind: actionPrevious}, nil
	case "finish":
		return callbackAction{kind: actionFinish}, nil
	case "restart":
		return callbackAction{kind: actionRestart}, nil
	}
	if opt, ok := strings.CutPrefix(data, "answer:"); ok {
		n, err := strconv.Atoi(opt)
		if err != nil {
			return callbackAction{}, fmt.Errorf("bad option %q: %w", opt, err)
		}
		return callbackAction{kind: actionAnswer, option: n}, nil
	}
	return callbackAction{}, fmt.Errorf("unknown callback %q", data)
}

func (a callbackAction) apply(qs *textquiz.Session) error {
	switch a.kind {
	case actionAnswer:
		return qs.Answer(a.option)
	case actionNext:
		return qs.Next()
	case actionPrevious:
		return qs.Previous()
	case actionFinish:
		return qs.Finish()
	}
	return nil
}

// renderSession returns the message text and keyboard for the session's
// current state. The keyboard is nil once the session is idle.
func renderSession(qs *textquiz.Session, errMsg string) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch qs.State() {
	case textquiz.StateIdle:
		return msgRestarted, nil
	case textquiz.StateCompleted:
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Restart", "restart"),
		))
		return renderResults(qs), &kb
	}

	q, _ := qs.Current()
	answer, answered := qs.AnswerFor(qs.Index())

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Question %d/%d</b> [%s, %s]\n\n", qs.Index()+1, len(qs.Quiz().Questions),
		html.EscapeString(q.Topic), q.Difficulty)
	b.WriteString(html.EscapeString(q.Text))
	b.WriteString("\n\n")
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "%s) %s\n", textquiz.OptionLetter(i), html.EscapeString(opt))
	}
	if answered {
		if answer == q.CorrectAnswer {
			b.WriteString("\n✅ Correct!")
		} else {
			fmt.Fprintf(&b, "\n❌ Incorrect. The correct answer is %s.", textquiz.OptionLetter(q.CorrectAnswer))
		}
		if q.Explanation != "" {
			fmt.Fprintf(&b, "\n💡 %s", html.EscapeString(q.Explanation))
		}
	}
	if errMsg != "" {
		fmt.Fprintf(&b, "\n\n⚠️ %s", html.EscapeString(errMsg))
	}

	answers := make([]tgbotapi.InlineKeyboardButton, len(q.Options))
	for i := range q.Options {
		label := textquiz.OptionLetter(i)
		if answered && answer == i {
			label = "• " + label
		}
		answers[i] = tgbotapi.NewInlineKeyboardButtonData(label, "answer:"+strconv.Itoa(i))
	}
	var nav []tgbotapi.InlineKeyboardButton
	if qs.Index() > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", "prev"))
	}
	if qs.IsLast() {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("🏁 Finish", "finish"))
	} else {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", "next"))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(answers, nav)
	return b.String(), &kb
}

func renderResults(qs *textquiz.Session) string {
	score, _ := qs.Score()
	results, _ := qs.Results()
	topics, _ := qs.TopicBreakdown()

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 <b>%s</b>\n\n🏆 Score: %d/%d (%.1f%%)\n\n",
		html.EscapeString(qs.Quiz().Title), score.Correct, score.Total, score.Percent)
	for _, r := range results {
		status := "✓"
		if !r.Correct {
			status = "✗"
		}
		fmt.Fprintf(&b, "%s Q%d you: %s, correct: %s\n", status, r.Number, r.YourAnswer, r.CorrectAnswer)
	}
	b.WriteString("\n📊 <b>By topic</b>\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "%s: %d/%d (%.1f%%)\n", html.EscapeString(t.Topic), t.Correct, t.Total, t.Percent)
	}
	return b.String()
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func newHTMLMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.Error("failed to send telegram message", zap.Error(err))
	}
}
