// Package compose builds outgoing replies to messages on a card. The prior
// message is quoted the way ingest recognizes it, so a reply that comes back
// into the board splits cleanly into the new text and the quote.
package compose

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shineum/mailthread/internal/email"
	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/quote"
)

// ReplyInput is what the author of a reply provides. HTML and Text are the
// new content only; the quote of the prior message is appended by Reply.
type ReplyInput struct {
	From     string
	FromName string
	// To overrides the default recipient, the prior message's sender.
	To   []string
	Cc   []string
	HTML string
	Text string
	// Date is the send time; zero means now.
	Date        time.Time
	Attachments []email.Attachment
}

// Reply builds the reply to prior.
func Reply(prior *ingest.Message, in ReplyInput) *email.Email {
	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	to := in.To
	if len(to) == 0 && prior.From != "" {
		to = []string{prior.From}
	}

	text := in.Text
	if strings.TrimSpace(text) == "" && in.HTML != "" {
		text = quote.HTMLToText(in.HTML)
	}
	body := in.HTML
	if strings.TrimSpace(body) == "" {
		body = quote.TextToHTML(text)
	}

	q := prior.QuoteInput()
	return &email.Email{
		From:        in.From,
		FromName:    in.FromName,
		To:          to,
		Cc:          in.Cc,
		Subject:     Subject(prior.Subject),
		Date:        date,
		MessageID:   newMessageID(in.From),
		InReplyTo:   prior.MessageID,
		References:  References(prior),
		HtmlBody:    body + quote.BuildQuotedHTML(q),
		TextBody:    strings.TrimRight(text, "\n") + "\n\n" + quote.BuildQuotedText(q) + "\n",
		Attachments: in.Attachments,
	}
}

// Subject prefixes subject with "Re: " unless it already is a reply.
func Subject(subject string) string {
	s := strings.TrimSpace(subject)
	if len(s) >= 3 && strings.EqualFold(s[:3], "re:") {
		return s
	}
	return "Re: " + s
}

// References returns the References list of a reply to prior: the prior's
// own references (or its In-Reply-To when it has none) followed by its
// Message-ID.
func References(prior *ingest.Message) []string {
	var refs []string
	switch {
	case len(prior.References) > 0:
		refs = append(refs, prior.References...)
	case prior.InReplyTo != "":
		refs = append(refs, prior.InReplyTo)
	}
	if prior.MessageID != "" && !containsID(refs, prior.MessageID) {
		refs = append(refs, prior.MessageID)
	}
	return refs
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// newMessageID returns a fresh Message-ID in the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndexByte(from, '@'); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return uuid.NewString() + "@" + domain
}
