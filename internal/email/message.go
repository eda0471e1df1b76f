// Package email defines the message model shared by the ingest, storage and
// reply paths.
package email

import "time"

// Email represents a parsed email message with all its components.
// Message IDs are stored without angle brackets.
type Email struct {
	From        string
	FromName    string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Date        time.Time
	MessageID   string
	InReplyTo   string
	References  []string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	RawHeaders  map[string][]string
}

// Attachment represents a file attached to an email message, or an inline
// part (typically an image) that the HTML body refers to by Content-ID.
type Attachment struct {
	// ID is unique within the message and stable across re-parses.
	ID          string
	Filename    string
	ContentType string
	// ContentID is the part's Content-ID without angle brackets.
	ContentID string
	Inline    bool
	Content   []byte
}

// ThreadRoot returns the ID of the first message of the thread e belongs
// to: the first References entry, else In-Reply-To, else e's own ID.
func (e *Email) ThreadRoot() string {
	if len(e.References) > 0 {
		return e.References[0]
	}
	if e.InReplyTo != "" {
		return e.InReplyTo
	}
	return e.MessageID
}

// Recipients returns To, Cc and Bcc in that order.
func (e *Email) Recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc)+len(e.Bcc))
	out = append(out, e.To...)
	out = append(out, e.Cc...)
	return append(out, e.Bcc...)
}
