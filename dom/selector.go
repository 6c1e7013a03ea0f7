// Package dom provides the small subset of DOM operations needed to work on
// documents parsed with golang.org/x/net/html: selector queries, attribute
// and dataset access, class lists, and element creation.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Selector is a parsed selector. Supported forms:
//   - tag: "div", "img"
//   - .class: ".placeholder"
//   - #id: "#gallery"
//   - tag.class: "img.img-small"
//   - tag#id: "div#main"
//   - tag[attr]: "div[data-large]"
//   - tag[attr=val]: "img[loading=lazy]"
//   - combinations separated by space (descendant combinator)
type Selector struct {
	parts []simpleSelector
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

// Compile parses a selector. An empty selector matches nothing.
func Compile(selector string) Selector {
	var s Selector
	for _, f := range strings.Fields(selector) {
		s.parts = append(s.parts, parseSimpleSelector(f))
	}
	return s
}

// String returns a canonical form of the selector, mostly for logs.
func (s Selector) String() string {
	parts := make([]string, 0, len(s.parts))
	for _, p := range s.parts {
		var b strings.Builder
		b.WriteString(p.tag)
		if p.id != "" {
			b.WriteString("#" + p.id)
		}
		for _, c := range p.classes {
			b.WriteString("." + c)
		}
		if p.attrKey != "" {
			b.WriteString("[" + p.attrKey)
			if p.hasVal {
				b.WriteString("=" + p.attrVal)
			}
			b.WriteString("]")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

// Match reports whether n matches the selector. For compound selectors the
// ancestors of n are checked right to left.
func (s Selector) Match(n *html.Node) bool {
	if len(s.parts) == 0 || !matchesSelector(n, s.parts[len(s.parts)-1]) {
		return false
	}
	i := len(s.parts) - 2
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if matchesSelector(p, s.parts[i]) {
			i--
		}
	}
	return i < 0
}

// QueryAll returns the descendants of root matching selector, in document
// order. root itself is never part of the result, but ancestors of root may
// satisfy the leading parts of a compound selector, as with the browser's
// element.querySelectorAll. The returned slice is a
// snapshot: later mutations of the tree do not change it.
func QueryAll(root *html.Node, selector string) []*html.Node {
	return Compile(selector).All(root)
}

// Query returns the first descendant of root matching selector, or nil.
func Query(root *html.Node, selector string) *html.Node {
	return Compile(selector).First(root)
}

// All is QueryAll for a compiled selector.
func (s Selector) All(root *html.Node) []*html.Node {
	if root == nil || len(s.parts) == 0 {
		return nil
	}
	var results []*html.Node
	walkDescendants(root, func(n *html.Node) bool {
		if s.Match(n) {
			results = append(results, n)
		}
		return true
	})
	return results
}

// First is Query for a compiled selector.
func (s Selector) First(root *html.Node) *html.Node {
	if root == nil || len(s.parts) == 0 {
		return nil
	}
	var found *html.Node
	walkDescendants(root, func(n *html.Node) bool {
		if s.Match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// walkDescendants visits the descendants of root depth-first in document
// order until fn returns false.
func walkDescendants(root *html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !fn(c) || !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		for _, c := range strings.Split(sel[idx+1:], ".") {
			if c != "" {
				s.classes = append(s.classes, c)
			}
		}
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	return s
}

// matchesSelector checks if a node matches a parsed simple selector.
func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	for _, c := range s.classes {
		if !HasClass(n, c) {
			return false
		}
	}
	if s.attrKey != "" {
		val, ok := Lookup(n, s.attrKey)
		if !ok {
			return false
		}
		if s.hasVal && val != s.attrVal {
			return false
		}
	}
	return true
}
