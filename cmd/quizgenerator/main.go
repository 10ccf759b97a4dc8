package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"textquiz"
	"textquiz/internal/app"
	"textquiz/internal/config"
)

func main() {
	flags := pflag.NewFlagSet("quizgenerator", pflag.ExitOnError)
	inputFile := flags.StringP("input", "i", "", "Text file to build the quiz from (default: stdin)")
	numQuestions := flags.IntP("questions", "n", textquiz.DefaultNumQuestions, "Number of questions to generate")
	difficulty := flags.StringP("difficulty", "d", "medium", "Difficulty level (easy, medium, hard)")
	outputFile := flags.StringP("output", "o", "", "Output file for quiz JSON (default: stdout)")
	playMode := flags.Bool("play", false, "Play the quiz interactively")
	flags.Bool("verbose", false, "Enable verbose debugging output")
	flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := textquiz.NewLogger(cfg.Env, cfg.Verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	content, err := readInput(*inputFile)
	if err != nil {
		logger.Fatal("failed to read input", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	if *playMode {
		fmt.Println("⏳ Generating quiz... (this may take a moment)")
	}

	quiz, report, err := a.Generator.GenerateQuiz(ctx, textquiz.GenerationRequest{
		Content:      content,
		NumQuestions: *numQuestions,
		Difficulty:   *difficulty,
	})
	if err != nil {
		logger.Fatal("failed to generate quiz", zap.Error(err))
	}

	if *playMode {
		playQuiz(quiz, report, os.Stdin, os.Stdout)
		return
	}

	output, err := json.MarshalIndent(struct {
		*textquiz.Quiz
		Report textquiz.GenerationReport `json:"report"`
	}{quiz, report}, "", "  ")
	if err != nil {
		logger.Fatal("failed to marshal quiz", zap.Error(err))
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			logger.Fatal("failed to write output file", zap.Error(err))
		}
		logger.Info("quiz saved", zap.String("path", *outputFile))
		return
	}
	fmt.Println(string(output))
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// playQuiz drives a Session from a line based terminal dialogue.
func playQuiz(quiz *textquiz.Quiz, report textquiz.GenerationReport, in io.Reader, out io.Writer) {
	session := textquiz.NewSession()
	if err := session.Load(quiz); err != nil {
		fmt.Fprintf(out, "Cannot start quiz: %v\n", err)
		return
	}

	fmt.Fprintf(out, "🎯 %s\n", quiz.Title)
	if report.Produced < report.Requested {
		fmt.Fprintf(out, "📝 %d of %d requested questions could be generated\n", report.Produced, report.Requested)
	}
	fmt.Fprintf(out, "📚 %s\n\n", quiz.SourceTextSummary)

	scanner := bufio.NewScanner(in)
	for session.State() == textquiz.StateInProgress {
		q, _ := session.Current()
		fmt.Fprintf(out, "Question %d/%d [%s, %s]:\n", session.Index()+1, len(quiz.Questions), q.Topic, q.Difficulty)
		fmt.Fprintf(out, "%s\n\n", q.Text)
		for i, option := range q.Options {
			fmt.Fprintf(out, "%s) %s\n", textquiz.OptionLetter(i), option)
		}
		if ans, ok := session.AnswerFor(session.Index()); ok {
			fmt.Fprintf(out, "\nYour answer: %s\n", textquiz.OptionLetter(ans))
		}
		fmt.Fprintln(out)

		fmt.Fprint(out, "Answer (A/B/C/D), [n]ext, [p]revious, [f]inish, [q]uit: ")
		if !scanner.Scan() {
			return
		}
		input := strings.ToUpper(strings.TrimSpace(scanner.Text()))

		var err error
		switch input {
		case "A", "B", "C", "D":
			idx := strings.Index("ABCD", input)
			if err = session.Answer(idx); err == nil {
				reportAnswer(out, q, idx)
			}
		case "N":
			err = session.Next()
		case "P":
			err = session.Previous()
		case "F":
			err = session.Finish()
		case "Q":
			return
		default:
			fmt.Fprintln(out, "Please enter A, B, C, D, n, p, f or q")
		}
		if err != nil {
			fmt.Fprintf(out, "⚠️  %v\n", err)
		}
		fmt.Fprintln(out, strings.Repeat("─", 50))
	}

	printResults(out, session)
}

func reportAnswer(out io.Writer, q textquiz.Question, answer int) {
	if answer == q.CorrectAnswer {
		fmt.Fprintln(out, "✅ Correct!")
	} else {
		fmt.Fprintf(out, "❌ Incorrect. The correct answer is %s) %s\n",
			textquiz.OptionLetter(q.CorrectAnswer), q.Options[q.CorrectAnswer])
	}
	if q.Explanation != "" {
		fmt.Fprintf(out, "💡 Explanation: %s\n", q.Explanation)
	}
}

func printResults(out io.Writer, session *textquiz.Session) {
	score, err := session.Score()
	if err != nil {
		return
	}
	fmt.Fprintln(out, "🎉 Quiz completed!")
	fmt.Fprintf(out, "\n🏆 Score: %d/%d (%.1f%%)\n\n", score.Correct, score.Total, score.Percent)

	results, _ := session.Results()
	for _, r := range results {
		status := "✓"
		if !r.Correct {
			status = "✗"
		}
		fmt.Fprintf(out, "  %s Q%d [%s] you: %s, correct: %s\n", status, r.Number, r.Topic, r.YourAnswer, r.CorrectAnswer)
	}

	topics, _ := session.TopicBreakdown()
	fmt.Fprintln(out, "\n📊 Performance by topic:")
	for _, t := range topics {
		fmt.Fprintf(out, "  %s: %d/%d (%.1f%%)\n", t.Topic, t.Correct, t.Total, t.Percent)
	}

	switch {
	case score.Percent >= 80:
		fmt.Fprintln(out, "🌟 Excellent work!")
	case score.Percent >= 60:
		fmt.Fprintln(out, "👍 Good job!")
	default:
		fmt.Fprintln(out, "📚 Keep studying!")
	}
}
