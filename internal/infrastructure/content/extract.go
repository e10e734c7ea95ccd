// Package content turns page HTML into the readable text handed to the
// realtime session by read_page.
package content

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/go-readability"

	"voice-navigator/internal/domain/entity"
)

type Config struct {
	// ContentSelectors are tried in order; the first match is the content region.
	ContentSelectors []string
	// Denylist elements are removed from the region before rendering.
	Denylist      []string
	MaxOutputSize int
}

var DefaultConfig = Config{
	ContentSelectors: []string{
		"main", "article", `[role="main"]`, ".main-content", ".article-content", "#content", ".content",
	},
	Denylist: []string{
		"script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "aside",
		`[aria-hidden="true"]`, `[role="complementary"]`, ".ad", ".ads", ".advertisement", ".social-share",
	},
	MaxOutputSize: 20_000,
}

const truncatedMarker = "\n\n[Content truncated]"

// Extract selects the content region of rawHTML and renders it as text.
// The title comes from readability when it can find one, and from <title>
// otherwise.
func Extract(rawHTML, pageURL string, cfg *Config) (entity.PageText, error) {
	if cfg == nil {
		cfg = &DefaultConfig
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return entity.PageText{}, fmt.Errorf("parse page html: %w", err)
	}

	region := contentRegion(doc, cfg.ContentSelectors)
	removeDenylisted(region, cfg.Denylist)

	text := Render(region.Nodes...)
	text = truncate(text, cfg.MaxOutputSize)

	return entity.PageText{
		Title: title(rawHTML, pageURL, doc),
		Text:  text,
	}, nil
}

func contentRegion(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		m, err := cascadia.Compile(sel)
		if err != nil {
			continue
		}
		if found := doc.FindMatcher(m).First(); found.Length() > 0 {
			return found
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func removeDenylisted(region *goquery.Selection, denylist []string) {
	for _, sel := range denylist {
		m, err := cascadia.Compile(sel)
		if err != nil {
			continue
		}
		region.FindMatcher(m).Remove()
	}
}

func title(rawHTML, pageURL string, doc *goquery.Document) string {
	if u, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(rawHTML), u); err == nil {
			if t := strings.TrimSpace(article.Title); t != "" {
				return t
			}
		}
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func truncate(text string, maxSize int) string {
	if maxSize <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxSize {
		return text
	}
	return strings.TrimRight(string(runes[:maxSize]), " \n") + truncatedMarker
}

// Format prepends the title to the extracted text.
func Format(p entity.PageText) string {
	if p.Title == "" {
		return p.Text
	}
	return "# " + p.Title + "\n\n" + p.Text
}
