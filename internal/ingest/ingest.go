// Package ingest turns parsed messages into stored thread entries: it routes
// a message to a board and card, splits its body into authored and quoted
// content, and hands the result to a Sink.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shineum/mailthread/internal/email"
	"github.com/shineum/mailthread/internal/quote"
)

// ErrNoRecipients is returned when a message has no address to route by.
var ErrNoRecipients = errors.New("message has no recipients")

// messageNamespace seeds the name-based UUIDs derived from Message-IDs.
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:mailthread:message"))

// Route is the board and card a message is filed under.
type Route struct {
	BoardID string `json:"boardId"`
	CardID  string `json:"cardId"`
}

// Attachment is a stored attachment of a message.
type Attachment struct {
	ID        string `json:"id" db:"id"`
	MessageID string `json:"-" db:"message_id"`
	Filename  string `json:"filename" db:"filename"`
	MimeType  string `json:"mimeType" db:"mime_type"`
	ContentID string `json:"contentId,omitempty" db:"content_id"`
	Inline    bool   `json:"inline" db:"inline"`
	Size      int    `json:"size" db:"size"`
	Content   []byte `json:"-" db:"content"`
}

// Descriptor returns the metadata inline-image rewriting needs.
func (a Attachment) Descriptor() quote.Attachment {
	return quote.Attachment{
		ID:        a.ID,
		Filename:  a.Filename,
		MimeType:  a.MimeType,
		ContentID: a.ContentID,
	}
}

// Message is a segmented message filed on a card.
type Message struct {
	ID         string    `json:"id"`
	BoardID    string    `json:"boardId"`
	CardID     string    `json:"cardId"`
	MessageID  string    `json:"messageId"`
	InReplyTo  string    `json:"inReplyTo,omitempty"`
	References []string  `json:"references,omitempty"`
	From       string    `json:"from"`
	FromName   string    `json:"fromName,omitempty"`
	To         []string  `json:"to"`
	Cc         []string  `json:"cc,omitempty"`
	Subject    string    `json:"subject"`
	SentAt     time.Time `json:"sentAt"`
	ReceivedAt time.Time `json:"receivedAt"`

	// HTML bodies: the sanitized original, and its two halves.
	HTML       string `json:"html,omitempty"`
	MainHTML   string `json:"mainHtml,omitempty"`
	QuotedHTML string `json:"quotedHtml,omitempty"`
	Styles     string `json:"styles,omitempty"`

	Text       string `json:"text,omitempty"`
	MainText   string `json:"mainText,omitempty"`
	QuotedText string `json:"quotedText,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
}

// QuoteInput returns m as the prior message of a reply.
func (m *Message) QuoteInput() quote.QuoteInput {
	return quote.QuoteInput{
		From:   quote.Sender{Name: m.FromName, Email: m.From},
		SentAt: m.SentAt,
		HTML:   m.HTML,
		Text:   m.Text,
	}
}

// Sink persists ingested messages.
type Sink interface {
	Save(ctx context.Context, msg *Message) error
}

// Pipeline segments parsed messages and saves them.
type Pipeline struct {
	sink      Sink
	segmenter *quote.Segmenter
	template  string
	log       *slog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSegmenter sets the segmenter used to split bodies.
func WithSegmenter(s *quote.Segmenter) Option {
	return func(p *Pipeline) { p.segmenter = s }
}

// WithImageURLTemplate sets the attachment proxy template inline images are
// rewritten to.
func WithImageURLTemplate(tmpl string) Option {
	return func(p *Pipeline) { p.template = tmpl }
}

// WithLogger sets the pipeline logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a Pipeline saving to sink.
func NewPipeline(sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		sink:      sink,
		segmenter: quote.New(),
		template:  quote.DefaultImageURLTemplate,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process segments e, files it under route and saves it.
func (p *Pipeline) Process(ctx context.Context, e *email.Email, route Route) (*Message, error) {
	msg := p.build(e, route)

	if err := p.sink.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message %s: %w", msg.ID, err)
	}

	p.log.Info("message ingested",
		"id", msg.ID,
		"message_id", msg.MessageID,
		"board_id", msg.BoardID,
		"card_id", msg.CardID,
		"attachments", len(msg.Attachments),
		"quoted", msg.QuotedHTML != "" || msg.QuotedText != "",
	)
	return msg, nil
}

// Split segments e without saving it.
func (p *Pipeline) Split(e *email.Email, route Route) *Message {
	return p.build(e, route)
}

func (p *Pipeline) build(e *email.Email, route Route) *Message {
	msg := &Message{
		ID:         messageUUID(e.MessageID),
		BoardID:    route.BoardID,
		CardID:     route.CardID,
		MessageID:  e.MessageID,
		InReplyTo:  e.InReplyTo,
		References: e.References,
		From:       e.From,
		FromName:   e.FromName,
		To:         e.To,
		Cc:         e.Cc,
		Subject:    e.Subject,
		SentAt:     e.Date,
		ReceivedAt: p.now().UTC(),
		Text:       e.TextBody,
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = msg.ReceivedAt
	}

	descriptors := make([]quote.Attachment, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		att := Attachment{
			ID:        uuid.NewSHA1(uuid.MustParse(msg.ID), []byte(a.ID)).String(),
			MessageID: msg.ID,
			Filename:  a.Filename,
			MimeType:  a.ContentType,
			ContentID: a.ContentID,
			Inline:    a.Inline,
			Size:      len(a.Content),
			Content:   a.Content,
		}
		msg.Attachments = append(msg.Attachments, att)
		descriptors = append(descriptors, att.Descriptor())
	}

	if strings.TrimSpace(e.HtmlBody) != "" {
		images := quote.ImageURL{Template: p.template, BoardID: route.BoardID, CardID: route.CardID}
		sanitized := p.segmenter.SanitizeAndRewriteInlineImages(e.HtmlBody, descriptors, images)

		msg.HTML = sanitized.SanitizedHTML
		msg.MainHTML = sanitized.SanitizedDisplayHTML
		msg.QuotedHTML = sanitized.SanitizedQuotedHTML
		msg.Styles = sanitized.Styles
	}
	if strings.TrimSpace(e.TextBody) != "" {
		split := p.segmenter.ParseTextBody(e.TextBody)
		msg.MainText = split.MainText
		msg.QuotedText = split.QuotedText
	}
	return msg
}

// messageUUID derives a stable ID from a Message-ID so a message imported
// twice maps to the same row. Messages without one get a random ID.
func messageUUID(messageID string) string {
	if messageID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(messageNamespace, []byte(messageID)).String()
}
