package richtext

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Emphasis flags describe the inline formatting a text node inherits from
// its ancestors.
type Emphasis uint8

const (
	Bold Emphasis = 1 << iota
	Italic
	Underline
	Strike
	Code
	Spoiler
	Link
	Quote
)

// Has reports whether all flags in f are set.
func (e Emphasis) Has(f Emphasis) bool { return e&f == f }

// TextNode is one text node of a document, positioned by rune offset in the
// concatenation of all text nodes.
type TextNode struct {
	Node     *html.Node
	Offset   int
	Len      int
	Emphasis Emphasis
}

// Text returns the node's decoded text.
func (t TextNode) Text() string { return t.Node.Data }

// End returns the rune offset one past the node.
func (t TextNode) End() int { return t.Offset + t.Len }

// Range addresses the runes [Start, End) inside the text node at index Node.
type Range struct {
	Node  int `json:"node"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Document is a parsed, sanitized rich-text fragment. Its text content (the
// concatenation of its text nodes) is the plain-text projection of the
// original markup, so plain-text offsets address rendered characters.
type Document struct {
	root  *html.Node
	nodes []TextNode
	text  string
}

func container() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// Parse sanitizes markup and parses it as an HTML body fragment.
func Parse(markup string) (*Document, error) {
	root := container()
	if markup != "" {
		nodes, err := html.ParseFragment(strings.NewReader(Sanitize(markup)), container())
		if err != nil {
			return nil, fmt.Errorf("parse message markup: %w", err)
		}
		for _, n := range nodes {
			root.AppendChild(n)
		}
	}
	return newDocument(root), nil
}

// MustParse is Parse for trusted fixtures; it panics on error.
func MustParse(markup string) *Document {
	d, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return d
}

// Plain builds a document holding a single text node. Used when markup
// cannot be parsed so highlighting still has text nodes to address.
func Plain(text string) *Document {
	root := container()
	if text != "" {
		root.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return newDocument(root)
}

func newDocument(root *html.Node) *Document {
	d := &Document{root: root}
	var sb strings.Builder
	offset := 0
	var walk func(n *html.Node, emph Emphasis)
	walk = func(n *html.Node, emph Emphasis) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if c.Data == "" {
					continue
				}
				l := utf8.RuneCountInString(c.Data)
				d.nodes = append(d.nodes, TextNode{Node: c, Offset: offset, Len: l, Emphasis: emph})
				sb.WriteString(c.Data)
				offset += l
			case html.ElementNode:
				walk(c, emph|emphasisOf(c))
			}
		}
	}
	walk(root, 0)
	d.text = sb.String()
	return d
}

func emphasisOf(n *html.Node) Emphasis {
	switch n.DataAtom {
	case atom.B, atom.Strong:
		return Bold
	case atom.I, atom.Em:
		return Italic
	case atom.U, atom.Ins:
		return Underline
	case atom.S, atom.Strike, atom.Del:
		return Strike
	case atom.Code, atom.Pre:
		return Code
	case atom.A:
		return Link
	case atom.Blockquote:
		return Quote
	case atom.Span:
		for _, a := range n.Attr {
			if a.Key == "class" && a.Val == "tg-spoiler" {
				return Spoiler
			}
		}
	}
	if n.Data == "tg-spoiler" {
		return Spoiler
	}
	return 0
}

// Text returns the document's text content.
func (d *Document) Text() string { return d.text }

// Len returns the text content length in runes.
func (d *Document) Len() int {
	if len(d.nodes) == 0 {
		return 0
	}
	return d.nodes[len(d.nodes)-1].End()
}

// TextNodes returns the text nodes in document order.
func (d *Document) TextNodes() []TextNode { return d.nodes }

// HTML renders the sanitized fragment.
func (d *Document) HTML() string {
	return renderChildren(d.root)
}

func renderChildren(root *html.Node) string {
	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// Project returns the plain-text projection of markup: the text content of
// the sanitized fragment. Unparseable markup degrades to unescaped text with
// tags left in place, which never happens for html.ParseFragment on a
// string reader in practice.
func Project(markup string) string {
	d, err := Parse(markup)
	if err != nil {
		return html.UnescapeString(markup)
	}
	return d.Text()
}
