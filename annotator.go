package textquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Entity is a named entity span with its label (PERSON, GPE, ORG, ...)
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Annotation is the output of the external linguistic annotation step.
type Annotation struct {
	Entities    []Entity `json:"entities"`
	NounPhrases []string `json:"noun_phrases"`
}

// Annotator is the external NLP capability
type Annotator interface {
	Annotate(ctx context.Context, text string) (Annotation, error)
}

// ProseAnnotator annotates text locally with the prose tokenizer, tagger and
// entity recognizer.
type ProseAnnotator struct{}

// Annotate runs the prose pipeline and chunks noun phrases from its POS tags.
func (ProseAnnotator) Annotate(ctx context.Context, text string) (Annotation, error) {
	if err := ctx.Err(); err != nil {
		return Annotation{}, err
	}
	doc, err := prose.NewDocument(text)
	if err != nil {
		return Annotation{}, fmt.Errorf("annotate text: %w", err)
	}

	var ann Annotation
	for _, ent := range doc.Entities() {
		ann.Entities = append(ann.Entities, Entity{Text: ent.Text, Label: ent.Label})
	}

	tags := make([]taggedWord, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tags = append(tags, taggedWord{text: tok.Text, tag: tok.Tag})
	}
	ann.NounPhrases = chunkNounPhrases(tags)
	return ann, nil
}

type taggedWord struct {
	text string
	tag  string
}

// chunkNounPhrases groups (DT|PRP$)? (JJ*|CD)* NN+ sequences of Penn
// Treebank tags into noun phrases.
func chunkNounPhrases(words []taggedWord) []string {
	var phrases []string
	var current []string
	hasNoun := false

	flush := func() {
		if hasNoun {
			phrases = append(phrases, strings.Join(current, " "))
		}
		current = current[:0]
		hasNoun = false
	}

	for _, w := range words {
		switch {
		case strings.HasPrefix(w.tag, "NN"):
			current = append(current, w.text)
			hasNoun = true
		case w.tag == "DT" || w.tag == "PRP$":
			flush()
			current = append(current, w.text)
		case strings.HasPrefix(w.tag, "JJ") || w.tag == "CD":
			if hasNoun {
				flush()
			}
			current = append(current, w.text)
		default:
			flush()
		}
	}
	flush()
	return phrases
}

// LLMAnnotator asks the text generator for entities and noun phrases as a
// JSON document.
type LLMAnnotator struct {
	generator TextGenerator
}

// NewLLMAnnotator creates an annotator backed by generator.
func NewLLMAnnotator(generator TextGenerator) *LLMAnnotator {
	return &LLMAnnotator{generator: generator}
}

const annotatePrompt = `Extract the named entities and the noun phrases from the text below.

Use spaCy style entity labels (PERSON, ORG, GPE, LOC, DATE, EVENT, WORK_OF_ART, NORP, ...).
Return ONLY a JSON object of the form:
{"entities": [{"text": "...", "label": "..."}], "noun_phrases": ["..."]}

Text:
%s`

// Annotate sends the text to the model and decodes its JSON answer.
func (a *LLMAnnotator) Annotate(ctx context.Context, text string) (Annotation, error) {
	resp, err := a.generator.Complete(ctx, []ChatMessage{
		System("You are a precise linguistic annotator. Answer with JSON only."),
		User(fmt.Sprintf(annotatePrompt, text)),
	}, CompletionOptions{Temperature: float32Ptr(0)})
	if err != nil {
		return Annotation{}, fmt.Errorf("annotate text: %w", err)
	}

	var ann Annotation
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &ann); err != nil {
		return Annotation{}, fmt.Errorf("failed to parse annotation: %w", err)
	}
	return ann, nil
}

// stripCodeFence removes a surrounding markdown code fence, if any.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
