package quote

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// AttributionDateLayout formats the date in a reply attribution line.
const AttributionDateLayout = "Mon, Jan 2, 2006 at 3:04 PM"

const blockquoteStyle = "margin:0px 0px 0px 0.8ex;border-left:1px solid rgb(204,204,204);padding-left:1ex"

// Sender identifies the author of a quoted message.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// QuoteInput is the prior message a reply quotes. HTML is used when set,
// Text otherwise.
type QuoteInput struct {
	From   Sender
	SentAt time.Time
	HTML   string
	Text   string
}

// Attribution returns the "On <date>, <sender> wrote:" line for in.
func (in QuoteInput) Attribution() string {
	who := strings.TrimSpace(in.From.Name)
	if who == "" {
		who = strings.TrimSpace(in.From.Email)
	}
	return fmt.Sprintf("On %s, %s wrote:", in.SentAt.Format(AttributionDateLayout), who)
}

// BuildQuotedHTML renders the prior message as a Gmail-style quote block
// that ParseHTMLBody recognizes as quoted on the next round trip.
func BuildQuotedHTML(in QuoteInput) string {
	var b strings.Builder
	b.WriteString(`<div class="gmail_quote">`)
	b.WriteString(`<div dir="ltr" class="gmail_attr">`)
	b.WriteString(html.EscapeString(in.Attribution()))
	b.WriteString(`<br></div>`)
	fmt.Fprintf(&b, `<blockquote class="gmail_quote" style="%s">`, blockquoteStyle)
	if strings.TrimSpace(in.HTML) != "" {
		b.WriteString(bodyInnerHTML(in.HTML))
	} else {
		b.WriteString(TextToHTML(in.Text))
	}
	b.WriteString(`</blockquote></div>`)
	return b.String()
}

// BuildQuotedText renders the prior message as an attribution line
// followed by "> "-prefixed lines.
func BuildQuotedText(in QuoteInput) string {
	text := in.Text
	if strings.TrimSpace(text) == "" && in.HTML != "" {
		text = HTMLToText(in.HTML)
	}
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var b strings.Builder
	b.WriteString(in.Attribution())
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("\n>")
		if line != "" {
			b.WriteByte(' ')
			b.WriteString(line)
		}
	}
	return b.String()
}

func bodyInnerHTML(src string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return src
	}
	inner, err := doc.Find("body").Html()
	if err != nil {
		return src
	}
	return inner
}

// TextToHTML renders plain text as one <div> per line, with <div><br></div>
// for blank lines.
func TextToHTML(text string) string {
	text = strings.TrimRight(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if isBlank(line) {
			b.WriteString("<div><br></div>")
			continue
		}
		b.WriteString("<div>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</div>")
	}
	return b.String()
}
