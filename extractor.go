package textquiz

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMaxConcepts caps the concept list returned by the extractor.
const DefaultMaxConcepts = 10

// ConceptExtractor turns an annotation into grouped entities and a capped
// list of distinct noun-phrase concepts.
type ConceptExtractor struct {
	annotator   Annotator
	maxConcepts int
}

// NewConceptExtractor creates an extractor. maxConcepts <= 0 uses the default.
func NewConceptExtractor(annotator Annotator, maxConcepts int) *ConceptExtractor {
	if maxConcepts <= 0 {
		maxConcepts = DefaultMaxConcepts
	}
	return &ConceptExtractor{annotator: annotator, maxConcepts: maxConcepts}
}

// Extract annotates text once and returns the entity map and concept list.
func (ce *ConceptExtractor) Extract(ctx context.Context, text string) (EntityMap, []string, error) {
	ann, err := ce.annotator.Annotate(ctx, text)
	if err != nil {
		return nil, nil, fmt.Errorf("extract concepts: %w", err)
	}
	return GroupEntities(ann.Entities), DistinctConcepts(ann.NounPhrases, ce.maxConcepts), nil
}

// GroupEntities groups entity texts by label, keeping order of appearance.
func GroupEntities(entities []Entity) EntityMap {
	m := make(EntityMap)
	for _, ent := range entities {
		text := strings.TrimSpace(ent.Text)
		if text == "" || ent.Label == "" {
			continue
		}
		m[ent.Label] = append(m[ent.Label], text)
	}
	return m
}

// DistinctConcepts removes duplicate phrases and truncates to max entries.
func DistinctConcepts(phrases []string, max int) []string {
	if max <= 0 {
		max = DefaultMaxConcepts
	}
	seen := make(map[string]struct{}, len(phrases))
	concepts := make([]string, 0, min(len(phrases), max))
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		concepts = append(concepts, p)
		if len(concepts) == max {
			break
		}
	}
	return concepts
}
