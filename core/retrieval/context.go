package retrieval

import (
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// BuildContext greedily selects ranked results into a token bounded window.
// A result is skipped when its paper already reached perPaperCap or when it
// does not fit the remaining budget. Rank order is preserved. Without
// candidates the window is empty, if candidates exist but none fits the
// error is ErrBudgetExceeded.
func BuildContext(results []*model.FusedResult, budget int, perPaperCap int) (*model.ContextWindow, error) {
	if budget <= 0 || perPaperCap <= 0 {
		return nil, helper.NewError("build context", helper.Wrap(helper.ErrInvalidInput, "budget and per paper cap must be positive"))
	}

	window := &model.ContextWindow{
		Items:  []*model.FusedResult{},
		Budget: budget,
	}
	if len(results) == 0 {
		return window, nil
	}

	perPaper := map[string]int{}
	for _, result := range results {
		if result.Chunk == nil {
			continue
		}
		if perPaper[result.PaperID] >= perPaperCap {
			continue
		}
		if window.TotalTokens+result.Chunk.TokenCount > budget {
			continue
		}

		window.Items = append(window.Items, result)
		window.TotalTokens += result.Chunk.TokenCount
		perPaper[result.PaperID]++

		if window.TotalTokens == budget {
			break
		}
	}

	if len(window.Items) == 0 {
		return nil, helper.NewError("build context", helper.Wrap(helper.ErrBudgetExceeded, "no evidence fits a budget of %d tokens", budget))
	}

	return window, nil
}
