package synthesis

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
)

// markerPattern matches [1], [1, 2], [1-3] and mixtures like [1, 3-4].
var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*[-–,]\s*\d+)*)\]`)

var uncertaintyPhrases = []string{
	"cannot find",
	"no information",
	"not enough",
	"unclear",
	"uncertain",
}

// ParseCitations resolves the citation markers of text against the window.
// Out of range numbers are ignored, every chunk is cited once in order of
// its first appearance.
func ParseCitations(text string, window *model.ContextWindow) []model.SourceCitation {
	citations := []model.SourceCitation{}
	if window.Empty() {
		return citations
	}

	seen := map[uuid.UUID]bool{}
	for _, n := range citationNumbers(text, len(window.Items)) {
		if n < 1 || n > len(window.Items) {
			continue
		}
		item := window.Items[n-1]
		if seen[item.ChunkID] {
			continue
		}
		seen[item.ChunkID] = true
		citations = append(citations, newSourceCitation(n, item))
	}
	return citations
}

// Confidence scores an answer from the validity of its citations and the
// fused scores of the cited sources. The result is in [0, 1] with two decimals.
func Confidence(text string, citations []model.SourceCitation, window *model.ContextWindow) float64 {
	size := 0
	if !window.Empty() {
		size = len(window.Items)
	}

	numbers := citationNumbers(text, size)
	citationScore := 0.3
	if len(numbers) > 0 {
		citationScore = 1.0
		for _, n := range numbers {
			if n < 1 || n > size {
				citationScore = 0.5
				break
			}
		}
	}

	lower := strings.ToLower(text)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			return round2(math.Max(0.2, citationScore*0.5))
		}
	}

	relevance := 0.0
	if len(citations) > 0 {
		for _, c := range citations {
			relevance += c.FusedScore
		}
		relevance /= float64(len(citations))
	} else if size > 0 {
		for _, item := range window.Items {
			relevance += item.FusedScore
		}
		relevance /= float64(size)
	}

	return round2(math.Min(1, 0.6*citationScore+0.4*relevance))
}

// citationNumbers returns every number referenced by a marker, ranges
// expanded. Ranges reaching past limit are cut one past it so that an
// invalid reference stays visible without expanding huge ranges.
func citationNumbers(text string, limit int) []int {
	var numbers []int
	for _, match := range markerPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(match[1], ",") {
			part = strings.TrimSpace(part)
			bounds := strings.FieldsFunc(part, func(r rune) bool { return r == '-' || r == '–' })
			if len(bounds) == 0 {
				continue
			}

			from, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				continue
			}
			to := from
			if len(bounds) == 2 {
				to, err = strconv.Atoi(strings.TrimSpace(bounds[1]))
				if err != nil {
					continue
				}
			}
			if from > to {
				from, to = to, from
			}
			if to > limit+1 {
				to = max(from, limit+1)
			}
			for n := from; n <= to; n++ {
				numbers = append(numbers, n)
			}
		}
	}
	return numbers
}

func newSourceCitation(marker int, item *model.FusedResult) model.SourceCitation {
	citation := model.SourceCitation{
		Marker:      marker,
		ChunkID:     item.ChunkID,
		PaperID:     item.PaperID,
		FusedScore:  item.FusedScore,
		DenseScore:  item.DenseScore,
		SparseScore: item.SparseScore,
	}
	if item.Paper != nil {
		citation.Title = item.Paper.Title
	}
	if item.Chunk != nil {
		citation.Section = item.Chunk.Section
		citation.Excerpt = item.Chunk.Excerpt(model.ExcerptLength)
	}
	return citation
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
