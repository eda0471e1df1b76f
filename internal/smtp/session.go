package smtp

import (
	"context"
	"io"
	"log/slog"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/mailthread/internal/email"
	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/parser"
)

// Handler files a parsed message under a route. *ingest.Pipeline
// implements it.
type Handler interface {
	Process(ctx context.Context, e *email.Email, route ingest.Route) (*ingest.Message, error)
}

var (
	errUnparsable = &gosmtp.SMTPError{
		Code:         554,
		EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
		Message:      "Message could not be parsed",
	}
	errUnroutable = &gosmtp.SMTPError{
		Code:         550,
		EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
		Message:      "No routable recipient",
	}
	errStoreFailed = &gosmtp.SMTPError{
		Code:         451,
		EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
		Message:      "Message could not be stored, try again later",
	}
)

// backend creates a session per connection.
type backend struct {
	handler      Handler
	auth         *Authenticator
	defaultBoard string
	// ctx is cancelled when the server shuts down.
	ctx context.Context
}

func (b *backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{
		backend: b,
		remote:  c.Conn().RemoteAddr().String(),
	}, nil
}

// session holds one SMTP transaction's envelope.
type session struct {
	backend *backend
	remote  string

	user string
	from string
	rcpt []string
}

var _ gosmtp.AuthSession = (*session)(nil)

func (s *session) AuthMechanisms() []string {
	if !s.backend.auth.Enabled() {
		return nil
	}
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain || !s.backend.auth.Enabled() {
		return nil, gosmtp.ErrAuthUnknownMechanism
	}
	return s.backend.auth.PlainServer(func(username string) {
		s.user = username
		slog.Debug("smtp client authenticated", "remote", s.remote, "user", username)
	}), nil
}

func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	if s.backend.auth.Enabled() && s.user == "" {
		return gosmtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	s.rcpt = append(s.rcpt, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		slog.Warn("failed to parse message",
			"remote", s.remote,
			"from", s.from,
			"error", err,
		)
		return errUnparsable
	}
	if msg.From == "" {
		msg.From = s.from
	}

	route, err := ingest.RouteFor(s.rcpt, msg, s.backend.defaultBoard)
	if err != nil {
		slog.Warn("failed to route message",
			"remote", s.remote,
			"message_id", msg.MessageID,
			"error", err,
		)
		return errUnroutable
	}

	if _, err := s.backend.handler.Process(s.backend.ctx, msg, route); err != nil {
		slog.Error("failed to ingest message",
			"remote", s.remote,
			"message_id", msg.MessageID,
			"board_id", route.BoardID,
			"card_id", route.CardID,
			"error", err,
		)
		return errStoreFailed
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.rcpt = nil
}

func (s *session) Logout() error {
	return nil
}
