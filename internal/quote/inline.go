package quote

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// DefaultImageURLTemplate is the attachment proxy route inline images are
// rewritten to when ImageURL.Template is empty.
const DefaultImageURLTemplate = "/api/boards/{boardId}/cards/{cardId}/attachments/{attachmentId}"

const cidScheme = "cid:"

// Attachment describes a stored attachment that inline images may refer to.
type Attachment struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mimeType"`
	ContentID string `json:"contentId,omitempty"`
}

// ImageURL builds proxy URLs for a card's attachments.
type ImageURL struct {
	Template string
	BoardID  string
	CardID   string
}

// For returns the proxy URL of the given attachment.
func (u ImageURL) For(attachmentID string) string {
	tmpl := u.Template
	if tmpl == "" {
		tmpl = DefaultImageURLTemplate
	}
	return strings.NewReplacer(
		"{boardId}", url.PathEscape(u.BoardID),
		"{cardId}", url.PathEscape(u.CardID),
		"{attachmentId}", url.PathEscape(attachmentID),
	).Replace(tmpl)
}

// SanitizedResult is the outcome of SanitizeAndRewriteInlineImages.
// SanitizedDisplayHTML and SanitizedQuotedHTML are the two halves of the
// same segmentation of SanitizedHTML.
type SanitizedResult struct {
	SanitizedHTML        string `json:"sanitizedHtml"`
	SanitizedDisplayHTML string `json:"sanitizedDisplayHtml"`
	SanitizedQuotedHTML  string `json:"sanitizedQuotedHtml,omitempty"`
	Styles               string `json:"styles"`
}

// RewriteInlineImages points <img src="cid:..."> references at the proxy URL
// of the image attachment whose filename or Content-ID they name.
// Anything that does not match an image attachment is left alone.
func RewriteInlineImages(body string, attachments []Attachment, u ImageURL) string {
	targets := cidTargets(attachments, u)
	if len(targets) == 0 {
		return body
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	rewritten := false
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		src = strings.TrimSpace(src)
		if len(src) <= len(cidScheme) || !strings.EqualFold(src[:len(cidScheme)], cidScheme) {
			return
		}
		if target, ok := targets[src[len(cidScheme):]]; ok {
			img.SetAttr("src", target)
			rewritten = true
		}
	})
	if !rewritten {
		return body
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return body
	}
	return out
}

// cidTargets maps every cid: reference an image attachment answers to onto
// its proxy URL. Content-IDs win over filenames when both collide.
func cidTargets(attachments []Attachment, u ImageURL) map[string]string {
	targets := make(map[string]string)
	for _, a := range attachments {
		if !strings.HasPrefix(strings.ToLower(a.MimeType), "image/") {
			continue
		}
		if a.Filename != "" {
			if _, ok := targets[a.Filename]; !ok {
				targets[a.Filename] = u.For(a.ID)
			}
		}
		if cid := strings.Trim(strings.TrimSpace(a.ContentID), "<>"); cid != "" {
			targets[cid] = u.For(a.ID)
		}
	}
	return targets
}

// SanitizeAndRewriteInlineImages removes active content from an HTML body,
// rewrites its inline images, and derives the display half.
// SanitizedHTML keeps the whole message; SanitizedDisplayHTML holds only
// the authored part. Styles are the head styles with remote loads removed.
func (s *Segmenter) SanitizeAndRewriteInlineImages(body string, attachments []Attachment, u ImageURL) SanitizedResult {
	styles := ""
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		styles = headStyles(doc)
	}

	clean := sanitizePolicy().Sanitize(body)
	clean = RewriteInlineImages(clean, attachments, u)
	split := s.ParseHTMLBody(clean)

	return SanitizedResult{
		SanitizedHTML:        clean,
		SanitizedDisplayHTML: split.MainHTML,
		SanitizedQuotedHTML:  split.QuotedHTML,
		Styles:               SanitizeStyles(styles),
	}
}

// sanitizePolicy is built once; bluemonday policies are safe for concurrent
// use after construction.
var sanitizePolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "dir").Globally()
	p.AllowStyles(
		"color", "background-color", "font-family", "font-size", "font-style",
		"font-weight", "text-align", "text-decoration", "line-height",
		"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
		"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
		"border", "border-left", "border-right", "border-top", "border-bottom",
		"width", "height", "white-space",
	).Globally()
	p.AllowElements("div", "span", "p", "br", "blockquote", "hr", "font", "center")
	p.AllowAttrs("color", "face", "size").OnElements("font")
	p.AllowURLSchemes("cid", "http", "https", "mailto")
	p.AllowDataURIImages()
	return p
})
