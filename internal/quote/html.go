package quote

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLResult is the outcome of segmenting an HTML body.
type HTMLResult struct {
	MainHTML   string `json:"mainHtml"`
	QuotedHTML string `json:"quotedHtml"`
	Styles     string `json:"styles"`
}

// ParseHTMLBody splits an HTML body into authored and quoted halves.
// It never fails: input the parser rejects comes back unchanged as MainHTML.
func (s *Segmenter) ParseHTMLBody(body string) HTMLResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.logger().Debug("failed to parse html body", "error", err)
		return HTMLResult{MainHTML: body}
	}

	result := HTMLResult{Styles: headStyles(doc)}

	bodySel := doc.Find("body").First()
	if bodySel.Length() == 0 {
		result.MainHTML = body
		return result
	}
	root := bodySel.Get(0)

	boundary := s.findBoundary(root)
	if len(boundary) > 0 {
		quoted, err := renderNodes(boundary)
		if err != nil {
			s.logger().Debug("failed to render quoted html", "error", err)
			result.MainHTML = body
			return result
		}
		result.QuotedHTML = quoted
		for _, n := range boundary {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
		}
	}

	trimTrailing(root)

	main, err := bodySel.Html()
	if err != nil {
		s.logger().Debug("failed to render main html", "error", err)
		return HTMLResult{MainHTML: body, Styles: result.Styles}
	}
	result.MainHTML = main
	return result
}

// headStyles joins the text of every <style> under <head>.
func headStyles(doc *goquery.Document) string {
	var styles []string
	doc.Find("head style").Each(func(_ int, sel *goquery.Selection) {
		styles = append(styles, sel.Text())
	})
	return strings.Join(styles, "\n")
}

func renderNodes(nodes []*html.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
