package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"textquiz"
)

func sampleQuiz() *textquiz.Quiz {
	return &textquiz.Quiz{
		Title:             "Cell Biology",
		SourceTextSummary: "Cells are the basic unit of life.",
		Questions: []textquiz.Question{
			{Text: "Powerhouse of the cell?", Options: []string{"Nucleus", "Mitochondria", "Ribosome", "Wall"}, CorrectAnswer: 1, Topic: "ORG", Explanation: "It produces ATP."},
			{Text: "Basic unit of life?", Options: []string{"Atom", "Organ", "Cell", "Tissue"}, CorrectAnswer: 2, Topic: textquiz.GeneralUnderstanding},
		},
	}
}

func TestPlayQuiz(t *testing.T) {
	in := strings.NewReader("n\nb\nx\nn\np\nn\nA\nf\n")
	var out bytes.Buffer

	playQuiz(sampleQuiz(), textquiz.GenerationReport{Requested: 3, Produced: 2}, in, &out)

	got := out.String()
	for _, want := range []string{
		"🎯 Cell Biology",
		"2 of 3 requested questions could be generated",
		"⚠️  current question has not been answered",
		"✅ Correct!",
		"💡 Explanation: It produces ATP.",
		"Please enter A, B, C, D, n, p, f or q",
		"Your answer: B",
		"❌ Incorrect. The correct answer is C) Cell",
		"🏆 Score: 1/2 (50.0%)",
		"✓ Q1 [ORG] you: B, correct: B",
		"✗ Q2 [General Understanding] you: A, correct: C",
		"General Understanding: 0/1 (0.0%)",
		"📚 Keep studying!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestPlayQuizQuitAndEOF(t *testing.T) {
	for _, input := range []string{"q\n", ""} {
		var out bytes.Buffer
		playQuiz(sampleQuiz(), textquiz.GenerationReport{Requested: 2, Produced: 2}, strings.NewReader(input), &out)
		if strings.Contains(out.String(), "Quiz completed") {
			t.Errorf("input %q completed the quiz", input)
		}
		if strings.Contains(out.String(), "requested questions could be generated") {
			t.Errorf("shortfall notice shown for a full quiz")
		}
	}
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte("some source text"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readInput(path)
	if err != nil || got != "some source text" {
		t.Fatalf("readInput = %q, %v", got, err)
	}
	if _, err := readInput(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}
