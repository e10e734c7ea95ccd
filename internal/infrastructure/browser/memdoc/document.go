// Package memdoc implements the document and tab ports over parsed HTML held
// in memory. It backs the replay command and the executor tests.
package memdoc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.DocumentPort = (*Document)(nil)

const (
	refAttr             = "data-voice-nav-ref"
	defaultScrollHeight = 5000
	defaultViewport     = 800
)

type StyleBlock struct {
	ID  string
	CSS string
}

type Document struct {
	mu sync.Mutex

	url  string
	doc  *goquery.Document
	refs int

	scrollY      int
	scrollHeight int
	viewport     int

	activated []string
}

func New(url, rawHTML string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{
		url:          url,
		doc:          doc,
		scrollHeight: defaultScrollHeight,
		viewport:     defaultViewport,
	}, nil
}

// SetScrollHeight changes the simulated document height.
func (d *Document) SetScrollHeight(h int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollHeight = h
}

func (d *Document) ScrollY() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollY
}

// Activations lists the refs activated so far, oldest first.
func (d *Document) Activations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.activated...)
}

// ActivatedText returns the normalized text of the activated elements.
func (d *Document) ActivatedText() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(d.activated))
	for _, ref := range d.activated {
		out = append(out, visibleText(d.doc.Find(ref).First()))
	}
	return out
}

func (d *Document) StyleBlocks() []StyleBlock {
	d.mu.Lock()
	defer d.mu.Unlock()

	var blocks []StyleBlock
	d.doc.Find("style[id]").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, StyleBlock{ID: s.AttrOr("id", ""), CSS: s.Text()})
	})
	return blocks
}

func (d *Document) URL(ctx context.Context) (string, error) {
	return d.url, nil
}

func (d *Document) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

func (d *Document) ScrollBy(ctx context.Context, dy int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY = d.clamp(d.scrollY + dy)
	return nil
}

func (d *Document) ScrollTo(ctx context.Context, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrollY = d.clamp(y)
	return nil
}

func (d *Document) ScrollHeight(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrollHeight, nil
}

func (d *Document) clamp(y int) int {
	maxY := d.scrollHeight - d.viewport
	if maxY < 0 {
		maxY = 0
	}
	if y > maxY {
		return maxY
	}
	if y < 0 {
		return 0
	}
	return y
}

func (d *Document) Query(ctx context.Context, selector string) (string, bool, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return "", false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sel := d.doc.FindMatcher(matcher).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return d.refFor(sel), true, nil
}

func (d *Document) Elements(ctx context.Context) ([]entity.ElementInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []entity.ElementInfo
	d.doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		tag := strings.ToUpper(goquery.NodeName(s))
		if tag == "SCRIPT" || tag == "STYLE" {
			return
		}
		out = append(out, entity.ElementInfo{
			Ref:  d.refFor(s),
			Tag:  tag,
			Role: s.AttrOr("role", ""),
			Type: strings.ToLower(s.AttrOr("type", "")),
			Text: visibleText(s),
		})
	})
	return out, nil
}

func (d *Document) Activate(ctx context.Context, ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doc.Find(ref).Length() == 0 {
		return fmt.Errorf("%w: %s", entity.ErrElementNotFound, ref)
	}
	d.activated = append(d.activated, ref)
	return nil
}

func (d *Document) InjectStyle(ctx context.Context, id, css string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	target := d.doc.Find("head").First()
	if target.Length() == 0 {
		target = d.doc.Find("html").First()
	}
	if target.Length() == 0 {
		return fmt.Errorf("document has no head")
	}

	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: css})
	target.AppendNodes(style)
	return nil
}

func (d *Document) refFor(s *goquery.Selection) string {
	ref, ok := s.Attr(refAttr)
	if !ok {
		d.refs++
		ref = strconv.Itoa(d.refs)
		s.SetAttr(refAttr, ref)
	}
	return fmt.Sprintf(`[%s="%s"]`, refAttr, ref)
}

func visibleText(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "input", "textarea", "select":
		for _, attr := range []string{"value", "placeholder", "aria-label"} {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
				return v
			}
		}
		if goquery.NodeName(s) != "input" {
			return strings.Join(strings.Fields(s.Text()), " ")
		}
		return ""
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			if n.DataAtom == atom.Img {
				for _, a := range n.Attr {
					if a.Key == "alt" {
						parts = append(parts, a.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if text == "" {
		text = strings.TrimSpace(s.AttrOr("aria-label", ""))
	}
	return text
}
