package quote

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockElements start and end a line when rendered as text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// HTMLToText renders an HTML body as plain text, one line per block
// element and per <br>. Runs of blank lines collapse to one.
func HTMLToText(src string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, n := range doc.Find("body").Nodes {
		writeText(&b, n)
	}

	var lines []string
	blank := false
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.TrimFunc(line, isSpaceLike)
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		lines = append(lines, line)
	}
	return strings.TrimFunc(strings.Join(lines, "\n"), isSpaceLike)
}

func writeText(b *strings.Builder, n *html.Node) {
	switch {
	case n.Type == html.TextNode:
		text := collapseSpace(n.Data)
		if s := b.String(); s == "" || strings.HasSuffix(s, "\n") {
			text = strings.TrimLeft(text, " ")
		}
		b.WriteString(text)
		return
	case isInvisibleElement(n):
		return
	case isElement(n, "br"):
		b.WriteByte('\n')
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		endLine(b)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		endLine(b)
	}
}

func endLine(b *strings.Builder) {
	if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

// collapseSpace folds whitespace runs to a single space, as a browser does
// outside <pre>.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
