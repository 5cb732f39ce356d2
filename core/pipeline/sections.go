package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// ExtractSections parses JATS or HTML full text into labelled sections.
// Every <sec> or <section> becomes one section labelled by its title or
// heading, holding the text of its direct paragraphs. Nested sections are
// returned as their own entries. Markup without sections yields a single
// "body" section.
func ExtractSections(markup string) ([]model.Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, helper.NewError("parse full text", err)
	}

	var sections []model.Section
	doc.Find("sec, section").Each(func(_ int, selection *goquery.Selection) {
		label := strings.TrimSpace(selection.ChildrenFiltered("title, h1, h2, h3, h4").First().Text())
		if label == "" {
			label = "section"
		}

		paragraphs := selection.ChildrenFiltered("p").Map(func(_ int, p *goquery.Selection) string {
			return strings.TrimSpace(p.Text())
		})
		text := strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
		if text == "" {
			return
		}

		sections = append(sections, model.Section{Label: label, Text: text})
	})

	if len(sections) == 0 {
		text := strings.TrimSpace(doc.Find("body").Text())
		if text == "" {
			return []model.Section{}, nil
		}
		sections = append(sections, model.Section{Label: "body", Text: text})
	}

	return sections, nil
}
