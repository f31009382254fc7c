// Package readability extracts plain text from HTML documents so that
// captured pages can be indexed like any other text.
package readability

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the distilled form of an HTML document.
type Page struct {
	Title string
	Text  string
}

// Extract strips scripts, styles and markup from an HTML document and
// returns its title plus whitespace-collapsed body text.
func Extract(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("readability: parse: %w", err)
	}

	doc.Find("script, style, noscript, template, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := collapse(body.Text())
	if text == "" {
		return nil, fmt.Errorf("readability: document has no extractable text")
	}

	return &Page{Title: title, Text: text}, nil
}

// Title returns just the document title. Unlike Extract it tolerates a
// body with no extractable text, which is common on script-rendered video
// pages.
func Title(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("readability: parse: %w", err)
	}
	return strings.TrimSpace(doc.Find("title").First().Text()), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
