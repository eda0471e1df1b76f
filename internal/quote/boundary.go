package quote

import (
	"golang.org/x/net/html"
)

const gmailQuoteClass = "gmail_quote"

// scanState tracks a single container's boundary scan.
type scanState int

const (
	scanSearching scanState = iota // no boundary seen at this level yet
	scanFound                      // boundary recorded, next sibling ends the scan
	scanDone
)

// boundaryMatch is a quote region found among a container's children.
type boundaryMatch struct {
	nodes     []*html.Node
	forwarded bool
}

// boundaryScan finds quote boundary nodes in a parsed body.
type boundaryScan struct {
	maxDepth int
	// truncated is set when a subtree was skipped at the depth limit.
	truncated bool
}

// findBoundary returns the boundary nodes below body in document order.
// The nodes are references into the tree, never copies.
func (s *Segmenter) findBoundary(body *html.Node) []*html.Node {
	scan := &boundaryScan{maxDepth: s.maxDepth}
	nodes, _ := scan.find(body, 0)
	if scan.truncated {
		s.logger().Debug("quote boundary search skipped subtrees past depth limit",
			"max_depth", s.maxDepth,
			"found", len(nodes) > 0,
		)
	}
	return nodes
}

// find scans the children of container. stop reports that the search must
// end without a boundary because a forwarded banner has nothing authored
// before it. Subtrees deeper than maxDepth are left unscanned and stay in
// the main content.
func (b *boundaryScan) find(container *html.Node, depth int) (nodes []*html.Node, stop bool) {
	if depth > b.maxDepth {
		b.truncated = true
		return nil, false
	}

	children := nonBlankChildren(container)
	state := scanSearching

	for i := 0; i < len(children) && state != scanDone; i++ {
		switch state {
		case scanSearching:
			m, ok := matchBoundary(children, i)
			if !ok {
				continue
			}
			if m.forwarded && !hasVisibleContentBefore(children, i) {
				return nil, true
			}
			nodes = m.nodes
			i += len(m.nodes) - 1
			state = scanFound
		case scanFound:
			// Content after the first quote region stays in main, even
			// another quote.
			state = scanDone
		}
	}
	if state != scanSearching {
		return nodes, false
	}

	// Nothing at this level: look inside wrapper elements.
	for _, child := range children {
		if child.Type != html.ElementNode {
			continue
		}
		nodes, stop := b.find(child, depth+1)
		if stop || len(nodes) > 0 {
			return nodes, stop
		}
	}
	return nil, false
}

// matchBoundary tests whether a quote region starts at children[i].
func matchBoundary(children []*html.Node, i int) (boundaryMatch, bool) {
	child := children[i]

	if hasClass(child, gmailQuoteClass) && containsBlockquote(child) {
		return boundaryMatch{
			nodes:     []*html.Node{child},
			forwarded: IsForwardedHeaderText(gmailAttribution(child)),
		}, true
	}

	header := textContent(child)
	if !IsQuoteHeaderText(header) {
		return boundaryMatch{}, false
	}
	for j := i + 1; j < len(children); j++ {
		sibling := children[j]
		if containsBlockquote(sibling) {
			nodes := make([]*html.Node, j-i+1)
			copy(nodes, children[i:j+1])
			return boundaryMatch{
				nodes:     nodes,
				forwarded: IsForwardedHeaderText(header),
			}, true
		}
		if hasVisibleText(sibling) {
			return boundaryMatch{}, false
		}
	}
	return boundaryMatch{}, false
}

// gmailAttribution returns the text of the first non-blank child of a
// gmail_quote element, which Gmail fills with the "On ... wrote:" line or
// the forwarded banner.
func gmailAttribution(n *html.Node) string {
	children := nonBlankChildren(n)
	if len(children) == 0 {
		return ""
	}
	return textContent(children[0])
}
