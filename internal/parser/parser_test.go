package parser

import (
	"strings"
	"testing"
	"time"
)

func join(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParseReplyHeaders(t *testing.T) {
	t.Parallel()

	raw := join(
		`From: "Bob Builder" <bob@example.com>`,
		"To: board+card-42@mail.example.com",
		"Subject: Re: Launch plan",
		"Date: Wed, 10 Jan 2024 14:20:00 +0000",
		"Message-Id: <reply-2@example.com>",
		"In-Reply-To: <root-1@example.com>",
		"References: <root-1@example.com> <mid-1@example.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Sounds good.",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.From != "bob@example.com" {
		t.Errorf("From: got %q, want %q", msg.From, "bob@example.com")
	}
	if msg.FromName != "Bob Builder" {
		t.Errorf("FromName: got %q, want %q", msg.FromName, "Bob Builder")
	}
	if msg.Subject != "Re: Launch plan" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Re: Launch plan")
	}
	wantDate := time.Date(2024, 1, 10, 14, 20, 0, 0, time.UTC)
	if !msg.Date.Equal(wantDate) {
		t.Errorf("Date: got %v, want %v", msg.Date, wantDate)
	}
	if msg.MessageID != "reply-2@example.com" {
		t.Errorf("MessageID: got %q, want %q", msg.MessageID, "reply-2@example.com")
	}
	if msg.InReplyTo != "root-1@example.com" {
		t.Errorf("InReplyTo: got %q, want %q", msg.InReplyTo, "root-1@example.com")
	}
	if len(msg.References) != 2 || msg.References[0] != "root-1@example.com" || msg.References[1] != "mid-1@example.com" {
		t.Errorf("References: got %v", msg.References)
	}
	if msg.ThreadRoot() != "root-1@example.com" {
		t.Errorf("ThreadRoot: got %q, want %q", msg.ThreadRoot(), "root-1@example.com")
	}
	if msg.TextBody != "Sounds good." {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Sounds good.")
	}
}

func TestParseAlternativeBodies(t *testing.T) {
	t.Parallel()

	raw := join(
		"From: sender@example.com",
		"To: alice@example.com, Bob <bob@example.com>",
		"Cc: carol@example.com",
		"Bcc: secret@example.com",
		"Subject: Multipart Test",
		"Content-Type: multipart/alternative; boundary=alt",
		"",
		"--alt",
		"Content-Type: text/plain",
		"",
		"Plain text body",
		"--alt",
		"Content-Type: text/html",
		"",
		"<html><body><p>HTML body</p></body></html>",
		"--alt--",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantTo := []string{"alice@example.com", "bob@example.com"}
	if len(msg.To) != len(wantTo) {
		t.Fatalf("To: got %v, want %v", msg.To, wantTo)
	}
	for i := range wantTo {
		if msg.To[i] != wantTo[i] {
			t.Errorf("To[%d]: got %q, want %q", i, msg.To[i], wantTo[i])
		}
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "carol@example.com" {
		t.Errorf("Cc: got %v, want [carol@example.com]", msg.Cc)
	}
	if len(msg.Bcc) != 1 || msg.Bcc[0] != "secret@example.com" {
		t.Errorf("Bcc: got %v, want [secret@example.com]", msg.Bcc)
	}
	if got := msg.Recipients(); len(got) != 4 {
		t.Errorf("Recipients: got %v, want 4 addresses", got)
	}
	if msg.TextBody != "Plain text body" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Plain text body")
	}
	if msg.HtmlBody != "<html><body><p>HTML body</p></body></html>" {
		t.Errorf("HtmlBody: got %q", msg.HtmlBody)
	}
}

func TestParseInlineImage(t *testing.T) {
	t.Parallel()

	raw := join(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Subject: Logo",
		"Content-Type: multipart/related; boundary=rel",
		"",
		"--rel",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<p>See <img src="cid:logo@example"></p>`,
		"--rel",
		"Content-Type: image/png; name=\"logo.png\"",
		"Content-Disposition: inline; filename=\"logo.png\"",
		"Content-Id: <logo@example>",
		"Content-Transfer-Encoding: base64",
		"",
		"aW1hZ2U=",
		"--rel",
		"Content-Type: application/pdf; name=\"report.pdf\"",
		"Content-Disposition: attachment; filename=\"report.pdf\"",
		"Content-Transfer-Encoding: base64",
		"",
		"SGVsbG8gV29ybGQ=",
		"--rel--",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.Attachments) != 2 {
		t.Fatalf("Attachments: got %d, want 2", len(msg.Attachments))
	}

	img := msg.Attachments[0]
	if img.ID != "1" {
		t.Errorf("image ID: got %q, want %q", img.ID, "1")
	}
	if img.Filename != "logo.png" {
		t.Errorf("image Filename: got %q, want %q", img.Filename, "logo.png")
	}
	if img.ContentType != "image/png" {
		t.Errorf("image ContentType: got %q, want %q", img.ContentType, "image/png")
	}
	if img.ContentID != "logo@example" {
		t.Errorf("image ContentID: got %q, want %q", img.ContentID, "logo@example")
	}
	if !img.Inline {
		t.Error("image Inline: got false, want true")
	}
	if string(img.Content) != "image" {
		t.Errorf("image Content: got %q, want %q", img.Content, "image")
	}

	pdf := msg.Attachments[1]
	if pdf.ID != "2" {
		t.Errorf("pdf ID: got %q, want %q", pdf.ID, "2")
	}
	if pdf.Inline {
		t.Error("pdf Inline: got true, want false")
	}
	if string(pdf.Content) != "Hello World" {
		t.Errorf("pdf Content: got %q, want %q", pdf.Content, "Hello World")
	}
}

func TestParseNestedMultipart(t *testing.T) {
	t.Parallel()

	raw := join(
		"From: sender@example.com",
		"To: recipient@example.com",
		"Content-Type: multipart/mixed; boundary=outer",
		"",
		"--outer",
		"Content-Type: multipart/alternative; boundary=inner",
		"",
		"--inner",
		"Content-Type: text/plain",
		"",
		"Plain text part",
		"--inner",
		"Content-Type: text/html",
		"",
		"<p>HTML part</p>",
		"--inner--",
		"--outer",
		"Content-Type: application/octet-stream",
		"Content-Disposition: attachment",
		"",
		"binarydata",
		"--outer--",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.TextBody != "Plain text part" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Plain text part")
	}
	if msg.HtmlBody != "<p>HTML part</p>" {
		t.Errorf("HtmlBody: got %q, want %q", msg.HtmlBody, "<p>HTML part</p>")
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments: got %d, want 1", len(msg.Attachments))
	}
	if msg.Attachments[0].Filename != "attachment.octet-stream" {
		t.Errorf("Filename: got %q, want %q", msg.Attachments[0].Filename, "attachment.octet-stream")
	}
}

func TestParseCharset(t *testing.T) {
	t.Parallel()

	raw := join(
		"From: sender@example.com",
		"Subject: =?ISO-8859-1?Q?Caf=E9?=",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Caf=E9 au lait",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != "Café" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Café")
	}
	if msg.TextBody != "Café au lait" {
		t.Errorf("TextBody: got %q, want %q", msg.TextBody, "Café au lait")
	}
}

func TestParseRawHeaders(t *testing.T) {
	t.Parallel()

	raw := join(
		"From: sender@example.com",
		"X-Custom-Header: custom-value",
		"Received: from a",
		"Received: from b",
		"",
		"Body",
	)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vals := msg.RawHeaders["X-Custom-Header"]; len(vals) != 1 || vals[0] != "custom-value" {
		t.Errorf("X-Custom-Header: got %v, want [custom-value]", vals)
	}
	if vals := msg.RawHeaders["Received"]; len(vals) != 2 {
		t.Errorf("Received: got %v, want 2 values", vals)
	}
	if msg.To != nil || msg.Cc != nil || msg.Bcc != nil {
		t.Errorf("recipients: got %v %v %v, want nil", msg.To, msg.Cc, msg.Bcc)
	}
	if msg.ThreadRoot() != "" {
		t.Errorf("ThreadRoot: got %q, want empty", msg.ThreadRoot())
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"not a message", []byte("not a valid email at all\x00\x01\x02")},
		{"multipart without boundary", join(
			"From: sender@example.com",
			"Content-Type: multipart/mixed",
			"",
			"some body",
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(tt.raw); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseMissingContentType(t *testing.T) {
	t.Parallel()

	msg, err := Parse(join(
		"From: sender@example.com",
		"Subject: No Content Type",
		"",
		"Body without content type header",
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.TextBody != "Body without content type header" {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
}
