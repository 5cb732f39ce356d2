package synthesis

import (
	"fmt"
	"strings"

	"github.com/siherrmann/scholar/model"
)

const instructions = `You are a research assistant answering questions about scientific papers.
Answer using only the numbered sources below. Cite every claim with the number
of its source in square brackets, for example [1] or [1, 3]. If the sources do
not contain the answer, say that there is not enough information.`

// BuildPrompt renders the question and the context window into a prompt.
// Each chunk is tagged [n] with n its 1-based position in the window.
func BuildPrompt(question string, window *model.ContextWindow) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nSources:\n")

	if !window.Empty() {
		for i, item := range window.Items {
			b.WriteString("\n")
			b.WriteString(sourceHeader(i+1, item))
			b.WriteString("\n")
			if item.Chunk != nil {
				b.WriteString(strings.TrimSpace(item.Chunk.Content))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}

func sourceHeader(marker int, item *model.FusedResult) string {
	title := item.PaperID
	year := 0
	if item.Paper != nil {
		if item.Paper.Title != "" {
			title = item.Paper.Title
		}
		year = item.Paper.Year()
	}

	header := fmt.Sprintf("[%d] %s", marker, title)
	if year > 0 {
		header += fmt.Sprintf(" (%d)", year)
	}
	if item.Chunk != nil && item.Chunk.Section != "" {
		header += ", section: " + item.Chunk.Section
	}
	return header
}
