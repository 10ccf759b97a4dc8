package textquiz

import (
	"context"
	"sync"
)

const wellFormedResponse = `Question: What is the capital of France?
A. London
B. Paris
C. Berlin
D. Madrid
Correct Answer: B
Explanation: Paris is the capital of France.`

type completeCall struct {
	messages []ChatMessage
	opts     CompletionOptions
}

// fakeGenerator answers each call with respond, recording the calls.
type fakeGenerator struct {
	mu      sync.Mutex
	respond func(call int, messages []ChatMessage) (string, error)
	calls   []completeCall
}

func (g *fakeGenerator) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	g.mu.Lock()
	n := len(g.calls)
	g.calls = append(g.calls, completeCall{messages: messages, opts: opts})
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.respond(n, messages)
}

func staticGenerator(resp string) *fakeGenerator {
	return &fakeGenerator{respond: func(int, []ChatMessage) (string, error) { return resp, nil }}
}

type fakeAnnotator struct {
	ann   Annotation
	err   error
	calls int
}

func (a *fakeAnnotator) Annotate(ctx context.Context, text string) (Annotation, error) {
	a.calls++
	return a.ann, a.err
}

type summaryCall struct {
	text     string
	min, max int
}

type fakeSummaryModel struct {
	summary string
	err     error
	calls   []summaryCall
}

func (m *fakeSummaryModel) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	m.calls = append(m.calls, summaryCall{text: text, min: minLength, max: maxLength})
	return m.summary, m.err
}

// seqRand returns the given values in turn, modulo n.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}

func words(n int) string {
	b := make([]byte, 0, n*5)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, "word"...)
	}
	return string(b)
}
