// Package ses sends replies through AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/mailthread/internal/email"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Config holds the settings for creating a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// SendEmailAPI is the SES v2 SendEmail operation.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider sends messages with the SES v2 API.
type Provider struct {
	sender     string
	client     SendEmailAPI
	retryDelay time.Duration
}

// New creates a Provider from the default AWS credential chain, or from
// static keys when both are set.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Provider around an existing client.
func NewWithClient(sender string, client SendEmailAPI) *Provider {
	return &Provider{
		sender:     sender,
		client:     client,
		retryDelay: baseRetryDelay,
	}
}

// Send delivers msg. Replies carry In-Reply-To and References, and SES
// simple content cannot set those headers, so threaded messages and
// messages with attachments are sent as raw MIME.
func (p *Provider) Send(ctx context.Context, msg *email.Email) error {
	var input *sesv2.SendEmailInput
	if needsRaw(msg) {
		raw, err := buildRawMessage(p.sender, msg)
		if err != nil {
			return fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(p.sender),
			Destination:      destination(msg),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(p.sender, msg)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying SES API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
			if err := sleepWithContext(ctx, p.backoffDelay(attempt)); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		}

		out, err := p.client.SendEmail(ctx, input)
		if err == nil {
			slog.Info("reply sent",
				"provider", p.Name(),
				"ses_message_id", aws.ToString(out.MessageId),
				"in_reply_to", msg.InReplyTo,
			)
			return nil
		}
		lastErr = err
		slog.Warn("SES API error", "attempt", attempt, "error", err)
	}

	return fmt.Errorf("SES API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "ses"
}

func needsRaw(msg *email.Email) bool {
	return len(msg.Attachments) > 0 || msg.InReplyTo != "" || len(msg.References) > 0
}

func destination(msg *email.Email) *types.Destination {
	return &types.Destination{
		ToAddresses:  msg.To,
		CcAddresses:  msg.Cc,
		BccAddresses: msg.Bcc,
	}
}

func buildSimpleInput(sender string, msg *email.Email) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.HtmlBody != "" {
		body.Html = &types.Content{Data: aws.String(msg.HtmlBody), Charset: aws.String("UTF-8")}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination:      destination(msg),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	}
}

// buildRawMessage writes msg as multipart/mixed: the bodies in a
// multipart/alternative part followed by the attachments. Bcc is left to
// the envelope.
func buildRawMessage(sender string, msg *email.Email) ([]byte, error) {
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: sender}})
	if len(msg.To) > 0 {
		h.SetAddressList("To", addresses(msg.To))
	}
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", addresses(msg.Cc))
	}
	h.SetSubject(msg.Subject)
	if msg.MessageID != "" {
		h.SetMessageID(msg.MessageID)
	}
	if msg.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{msg.InReplyTo})
	}
	if len(msg.References) > 0 {
		h.SetMsgIDList("References", msg.References)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if msg.TextBody != "" {
		if err := writeInline(tw, "text/plain", msg.TextBody); err != nil {
			return nil, err
		}
	}
	if msg.HtmlBody != "" {
		if err := writeInline(tw, "text/html", msg.HtmlBody); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close body part: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(att.ContentType, nil)
		ah.SetFilename(att.Filename)
		if att.ContentID != "" {
			ah.Set("Content-Id", "<"+att.ContentID+">")
		}
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := w.Write(att.Content); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to close attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInline(tw *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ih)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

func addresses(list []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(list))
	for _, a := range list {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
func (p *Provider) backoffDelay(attempt int) time.Duration {
	return p.retryDelay << attempt
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
