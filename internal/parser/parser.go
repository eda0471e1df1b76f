// Package parser turns raw RFC 5322 messages into email.Email values.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/mailthread/internal/email"
)

// Parse parses a raw RFC 5322 message. The first inline text/plain and
// text/html parts become the bodies; every other leaf part, inline images
// included, becomes an attachment. Parts in an unknown charset are kept
// undecoded.
func Parse(raw []byte) (*email.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	if mr.Header.Len() == 0 {
		return nil, fmt.Errorf("failed to parse message: no header fields")
	}
	if mediaType, params, _ := mr.Header.ContentType(); strings.HasPrefix(mediaType, "multipart/") && params["boundary"] == "" {
		return nil, fmt.Errorf("multipart message missing boundary")
	}

	result := &email.Email{
		RawHeaders: make(map[string][]string),
	}
	readHeader(&mr.Header, result)

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			if result.TextBody != "" || result.HtmlBody != "" {
				slog.Warn("failed to read next part, keeping parts read so far",
					"message_id", result.MessageID,
					"error", err,
				)
				break
			}
			return nil, fmt.Errorf("failed to read next part: %w", err)
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			slog.Warn("failed to read part content",
				"message_id", result.MessageID,
				"error", err,
			)
			continue
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, params, _ := h.ContentType()
			switch {
			case mediaType == "text/plain" && result.TextBody == "":
				result.TextBody = string(content)
			case mediaType == "text/html" && result.HtmlBody == "":
				result.HtmlBody = string(content)
			case mediaType == "text/plain" || mediaType == "text/html":
				slog.Debug("ignoring additional body part", "content_type", mediaType)
			default:
				filename := params["name"]
				if _, dparams, err := h.ContentDisposition(); err == nil && dparams["filename"] != "" {
					filename = dparams["filename"]
				}
				result.Attachments = append(result.Attachments,
					newAttachment(len(result.Attachments), h.Header, mediaType, filename, true, content))
			}
		case *mail.AttachmentHeader:
			mediaType, params, _ := h.ContentType()
			filename, _ := h.Filename()
			if filename == "" {
				filename = params["name"]
			}
			result.Attachments = append(result.Attachments,
				newAttachment(len(result.Attachments), h.Header, mediaType, filename, false, content))
		}
	}

	return result, nil
}

func readHeader(h *mail.Header, result *email.Email) {
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		result.RawHeaders[key] = append(result.RawHeaders[key], value)
	}

	if from := addressList(h, "From"); len(from) > 0 {
		result.From = from[0].Address
		result.FromName = from[0].Name
	} else {
		result.From = strings.TrimSpace(h.Get("From"))
	}
	result.To = addresses(addressList(h, "To"))
	result.Cc = addresses(addressList(h, "Cc"))
	result.Bcc = addresses(addressList(h, "Bcc"))

	if subject, err := h.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = h.Get("Subject")
	}
	if date, err := h.Date(); err == nil {
		result.Date = date
	}
	if id, err := h.MessageID(); err == nil {
		result.MessageID = id
	}
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		result.InReplyTo = ids[0]
	}
	if ids, err := h.MsgIDList("References"); err == nil {
		result.References = ids
	}
}

// addressList parses an address header, falling back to a plain comma split
// for headers the RFC 5322 parser rejects.
func addressList(h *mail.Header, key string) []*mail.Address {
	list, err := h.AddressList(key)
	if err == nil {
		return list
	}

	slog.Debug("failed to parse address list, splitting on commas",
		"header", key,
		"error", err,
	)
	var out []*mail.Address
	for _, p := range strings.Split(h.Get(key), ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, &mail.Address{Address: trimmed})
		}
	}
	return out
}

func addresses(list []*mail.Address) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

func newAttachment(index int, h message.Header, mediaType, filename string, inline bool, content []byte) email.Attachment {
	if filename == "" {
		filename = fallbackFilename(mediaType)
	}
	return email.Attachment{
		ID:          strconv.Itoa(index + 1),
		Filename:    filename,
		ContentType: mediaType,
		ContentID:   strings.Trim(strings.TrimSpace(h.Get("Content-Id")), "<>"),
		Inline:      inline,
		Content:     content,
	}
}

// fallbackFilename names an attachment that carries no filename.
func fallbackFilename(mediaType string) string {
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}
