package quote

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Header patterns. A reply attribution may sit anywhere in the text.
const (
	replyHeaderPattern     = `(?is)\bOn\s.+?wrote:`
	forwardedHeaderPattern = `(?i)-{2,}\s*Forwarded message\s*-{2,}`
)

var (
	replyHeaderRegexp     = regexp.MustCompile(replyHeaderPattern)
	forwardedHeaderRegexp = regexp.MustCompile(forwardedHeaderPattern)
)

// alwaysVisible lists elements that render something even without text.
var alwaysVisible = map[string]bool{
	"img":    true,
	"video":  true,
	"audio":  true,
	"iframe": true,
	"svg":    true,
	"canvas": true,
	"hr":     true,
}

// IsQuoteHeaderText reports whether text is a reply attribution
// ("On ... wrote:") or a forwarded-message banner.
func IsQuoteHeaderText(text string) bool {
	text = normalizeSpace(text)
	return replyHeaderRegexp.MatchString(text) || forwardedHeaderRegexp.MatchString(text)
}

// IsForwardedHeaderText reports whether text carries a forwarded-message
// banner such as "---------- Forwarded message ---------".
func IsForwardedHeaderText(text string) bool {
	return forwardedHeaderRegexp.MatchString(normalizeSpace(text))
}

// normalizeSpace maps non-ASCII spaces (NBSP and friends) to ASCII space
// so the RE2 \s class sees them.
func normalizeSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII && unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func isSpaceLike(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return unicode.IsSpace(r)
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, isSpaceLike) == ""
}

// hasVisibleContent reports whether n renders anything: non-blank text
// somewhere below it or an element from the always-visible set.
func hasVisibleContent(n *html.Node) bool {
	visible := false
	walk(n, func(c *html.Node) walkAction {
		switch {
		case c.Type == html.TextNode && !isBlank(c.Data):
			visible = true
		case c.Type == html.ElementNode && alwaysVisible[c.Data]:
			visible = true
		case isInvisibleElement(c):
			return walkSkip
		}
		if visible {
			return walkStop
		}
		return walkContinue
	})
	return visible
}

// hasVisibleContentBefore reports whether any node strictly before index
// in nodes is visible.
func hasVisibleContentBefore(nodes []*html.Node, index int) bool {
	for i := 0; i < index && i < len(nodes); i++ {
		if hasVisibleContent(nodes[i]) {
			return true
		}
	}
	return false
}

// hasVisibleText is like hasVisibleContent but ignores media elements.
func hasVisibleText(n *html.Node) bool {
	return !isBlank(textContent(n))
}

// textContent concatenates the text below n, skipping script-like elements.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) walkAction {
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case isInvisibleElement(c):
			return walkSkip
		}
		return walkContinue
	})
	return b.String()
}

func isInvisibleElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "script", "style", "template", "title", "head":
		return true
	}
	return false
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// containsBlockquote reports whether n is or contains a blockquote.
func containsBlockquote(n *html.Node) bool {
	found := false
	walk(n, func(c *html.Node) walkAction {
		if isElement(c, "blockquote") {
			found = true
			return walkStop
		}
		return walkContinue
	})
	return found
}

type walkAction int

const (
	walkContinue walkAction = iota
	walkSkip                // do not descend into the node
	walkStop
)

// walk visits n and its descendants in document order. It keeps an
// explicit stack so pathological nesting cannot exhaust the goroutine stack.
func walk(n *html.Node, fn func(*html.Node) walkAction) {
	stack := []*html.Node{n}
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch fn(c) {
		case walkStop:
			return
		case walkSkip:
			continue
		}
		for k := c.LastChild; k != nil; k = k.PrevSibling {
			stack = append(stack, k)
		}
	}
}

// nonBlankChildren returns the children of n that are elements or text
// nodes with non-blank text, in document order.
func nonBlankChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			out = append(out, c)
		case html.TextNode:
			if !isBlank(c.Data) {
				out = append(out, c)
			}
		}
	}
	return out
}
