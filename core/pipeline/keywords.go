package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// KeywordExtractFunc derives keywords from paper text.
type KeywordExtractFunc func(text string) ([]string, error)

// minKeywordScore drops low confidence entities.
const minKeywordScore = 0.5

// keywordLabels are the NER classes kept as keywords. Gene, protein and
// method names are mostly tagged MISC or ORG, persons and places are not topics.
var keywordLabels = map[string]bool{
	"MISC": true,
	"ORG":  true,
}

type entity struct {
	Word  string
	Label string
	Score float32
}

// DefaultKeywordExtractor creates a keyword extractor using a NER model
// Uses distilbert-NER, the model is downloaded on first use
func DefaultKeywordExtractor() (KeywordExtractFunc, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "keyword-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return func(text string) ([]string, error) {
		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			return []string{}, nil
		}

		entities := make([]entity, 0, len(result.Entities[0]))
		for _, e := range result.Entities[0] {
			entities = append(entities, entity{Word: e.Word, Label: e.Entity, Score: e.Score})
		}
		return keywordsFromEntities(entities), nil
	}, nil
}

// keywordsFromEntities keeps topical entities above the score threshold,
// deduped case-insensitively in order of appearance.
func keywordsFromEntities(entities []entity) []string {
	keywords := []string{}
	seen := map[string]bool{}
	for _, e := range entities {
		if e.Score < minKeywordScore || !keywordLabels[normalizeEntityType(e.Label)] {
			continue
		}
		// word pieces are not keywords
		word := strings.TrimSpace(e.Word)
		if len([]rune(word)) < 2 || strings.HasPrefix(word, "##") {
			continue
		}
		key := model.NormalizeKey(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		keywords = append(keywords, word)
	}
	return keywords
}

// normalizeEntityType removes B- and I- prefixes from NER labels
func normalizeEntityType(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}

// EnrichKeywords fills the keywords of a paper without any from its title
// and abstract. It does nothing without a keyword extractor.
func (p *Pipeline) EnrichKeywords(paper *model.Paper) error {
	if p.Keywords == nil || len(paper.Keywords) > 0 {
		return nil
	}

	text := strings.TrimSpace(paper.Title + ". " + paper.Abstract)
	keywords, err := p.Keywords(text)
	if err != nil {
		return helper.NewError("extract keywords", err)
	}
	paper.Keywords = keywords
	return nil
}
