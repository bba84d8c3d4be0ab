package richtext

import (
	"sort"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Wrap renders the document with every range wrapped in a tag element
// carrying class (if non-empty). The document itself is not modified; the
// splice happens on a clone. Ranges addressing unknown nodes or empty rune
// intervals are ignored, and overlapping ranges inside one node are merged.
func (d *Document) Wrap(ranges []Range, tag, class string) string {
	if len(ranges) == 0 {
		return d.HTML()
	}
	byNode := make(map[int][]Range)
	for _, r := range ranges {
		if r.Node < 0 || r.Node >= len(d.nodes) {
			continue
		}
		n := d.nodes[r.Node]
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > n.Len {
			r.End = n.Len
		}
		if r.Start >= r.End {
			continue
		}
		byNode[r.Node] = append(byNode[r.Node], r)
	}

	root, mapping := cloneTree(d.root)
	for idx, rs := range byNode {
		clone := mapping[d.nodes[idx].Node]
		if clone == nil {
			continue
		}
		splice(clone, mergeRanges(rs), tag, class)
	}
	return renderChildren(root)
}

func mergeRanges(rs []Range) []Range {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// splice replaces text node n with alternating text and tag nodes.
func splice(n *html.Node, rs []Range, tag, class string) {
	runes := []rune(n.Data)
	parent := n.Parent
	pos := 0
	insert := func(node *html.Node) { parent.InsertBefore(node, n) }
	for _, r := range rs {
		if r.Start > pos {
			insert(&html.Node{Type: html.TextNode, Data: string(runes[pos:r.Start])})
		}
		mark := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
		if class != "" {
			mark.Attr = []html.Attribute{{Key: "class", Val: class}}
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: string(runes[r.Start:r.End])})
		insert(mark)
		pos = r.End
	}
	if pos < len(runes) {
		insert(&html.Node{Type: html.TextNode, Data: string(runes[pos:])})
	}
	parent.RemoveChild(n)
}

// cloneTree deep-copies n and returns a map from original to cloned nodes.
func cloneTree(n *html.Node) (*html.Node, map[*html.Node]*html.Node) {
	mapping := make(map[*html.Node]*html.Node)
	var clone func(*html.Node) *html.Node
	clone = func(src *html.Node) *html.Node {
		dst := &html.Node{
			Type:      src.Type,
			DataAtom:  src.DataAtom,
			Data:      src.Data,
			Namespace: src.Namespace,
		}
		if len(src.Attr) > 0 {
			dst.Attr = append([]html.Attribute(nil), src.Attr...)
		}
		mapping[src] = dst
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			dst.AppendChild(clone(c))
		}
		return dst
	}
	return clone(n), mapping
}
