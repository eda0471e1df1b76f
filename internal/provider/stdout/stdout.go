// Package stdout prints composed replies instead of sending them.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/mailthread/internal/email"
)

const separator = "========================================\n"

// Provider writes each message to an io.Writer, os.Stdout by default.
type Provider struct {
	writer io.Writer
}

// New creates a Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a Provider that writes to w.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints msg with its threading headers. The text body is preferred;
// the HTML body is printed only when there is no text.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	var b strings.Builder

	b.WriteString(separator)
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}
	fmt.Fprintf(&b, "From: %s\n", from)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: <%s>\n", msg.InReplyTo)
	}
	if len(msg.References) > 0 {
		fmt.Fprintf(&b, "References: <%s>\n", strings.Join(msg.References, "> <"))
	}

	body := msg.TextBody
	if body == "" {
		body = msg.HtmlBody
	}
	b.WriteString("Body:\n")
	b.WriteString(strings.TrimRight(body, "\n") + "\n")

	if len(msg.Attachments) > 0 {
		names := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			names = append(names, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
