package content

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Render converts nodes to Markdown-like text: headings get "#" prefixes,
// list items "- ", links "[text](href)", and blocks are separated by a
// blank line.
func Render(nodes ...*html.Node) string {
	r := &renderer{}
	for _, n := range nodes {
		r.node(n)
	}
	r.flush()
	return strings.Join(r.blocks, "\n\n")
}

type renderer struct {
	blocks []string
	line   strings.Builder
	// prefix is applied to the next non-empty block.
	prefix string
}

func (r *renderer) flush() {
	text := strings.Join(strings.Fields(r.line.String()), " ")
	r.line.Reset()
	if text != "" {
		r.blocks = append(r.blocks, r.prefix+text)
		r.prefix = ""
	}
}

func (r *renderer) block(n *html.Node, prefix string) {
	r.flush()
	r.prefix = prefix
	r.children(n)
	r.flush()
	r.prefix = ""
}

func (r *renderer) write(s string) {
	r.line.WriteString(s)
}

func (r *renderer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(c)
	}
}

func (r *renderer) node(n *html.Node) {
	switch n.Type {
	case html.DocumentNode:
		r.children(n)
		return
	case html.TextNode:
		r.write(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		r.block(n, strings.Repeat("#", level)+" ")
	case atom.Li:
		r.block(n, "- ")
	case atom.A:
		text := inlineText(n)
		href := attr(n, "href")
		switch {
		case text == "":
		case href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#"):
			r.write(" " + text + " ")
		default:
			r.write(" [" + text + "](" + href + ") ")
		}
	case atom.Img:
		if alt := strings.TrimSpace(attr(n, "alt")); alt != "" {
			r.write(" " + alt + " ")
		}
	case atom.Br:
		r.write(" ")
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Ul, atom.Ol,
		atom.Table, atom.Tr, atom.Blockquote, atom.Pre, atom.Figure, atom.Figcaption,
		atom.Dl, atom.Dt, atom.Dd, atom.Form, atom.Fieldset, atom.Details, atom.Summary:
		r.flush()
		r.children(n)
		r.flush()
	case atom.Td, atom.Th:
		r.write(" ")
		r.children(n)
		r.write(" ")
	default:
		r.children(n)
	}
}

func inlineText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		case html.ElementNode:
			if n.DataAtom == atom.Img {
				sb.WriteString(attr(n, "alt"))
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
