package smtp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/mailthread/internal/email"
	"github.com/shineum/mailthread/internal/ingest"
)

// mockHandler records processed messages.
type mockHandler struct {
	mu     sync.Mutex
	msgs   []*email.Email
	routes []ingest.Route
	err    error
}

func (m *mockHandler) Process(_ context.Context, e *email.Email, route ingest.Route) (*ingest.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.msgs = append(m.msgs, e)
	m.routes = append(m.routes, route)
	return &ingest.Message{ID: "id"}, nil
}

func (m *mockHandler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func (m *mockHandler) first() (*email.Email, ingest.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msgs[0], m.routes[0]
}

// startServer runs a server on a random port until the test ends.
func startServer(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Hostname = "mail.test"
	srv := New(cfg)
	if err := srv.Listen(); err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return srv.Addr()
}

const testMessage = "From: Bob <bob@example.com>\r\n" +
	"To: launch+card-7@mail.test\r\n" +
	"Subject: Re: Launch\r\n" +
	"Message-Id: <reply@example.com>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Ship it\r\n" +
	"\r\n" +
	"On Tue, Alice wrote:\r\n" +
	"> Ready?\r\n"

func TestServerAcceptsMessage(t *testing.T) {
	t.Parallel()

	h := &mockHandler{}
	addr := startServer(t, ServerConfig{Handler: h, DefaultBoard: "inbox"})

	err := gosmtp.SendMailInsecure(addr, nil, "bob@example.com",
		[]string{"launch+card-7@mail.test"}, strings.NewReader(testMessage))
	if err != nil {
		t.Fatalf("SendMail: %v", err)
	}

	if h.count() != 1 {
		t.Fatalf("processed: got %d, want 1", h.count())
	}
	msg, route := h.first()
	if msg.From != "bob@example.com" {
		t.Errorf("From: got %q, want %q", msg.From, "bob@example.com")
	}
	if msg.MessageID != "reply@example.com" {
		t.Errorf("MessageID: got %q, want %q", msg.MessageID, "reply@example.com")
	}
	if !strings.Contains(msg.TextBody, "Ship it") {
		t.Errorf("TextBody: got %q", msg.TextBody)
	}
	want := ingest.Route{BoardID: "launch", CardID: "card-7"}
	if route != want {
		t.Errorf("route: got %+v, want %+v", route, want)
	}
}

func TestServerRequiresAuth(t *testing.T) {
	t.Parallel()

	h := &mockHandler{}
	addr := startServer(t, ServerConfig{Handler: h, AuthUsername: "user", AuthPassword: "secret"})

	err := gosmtp.SendMailInsecure(addr, nil, "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader(testMessage))
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 502 {
		t.Errorf("unauthenticated: got %v, want 502", err)
	}

	err = gosmtp.SendMailInsecure(addr, sasl.NewPlainClient("", "user", "wrong"), "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader(testMessage))
	if err == nil {
		t.Error("bad password: expected error, got nil")
	}

	err = gosmtp.SendMailInsecure(addr, sasl.NewPlainClient("", "user", "secret"), "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader(testMessage))
	if err != nil {
		t.Fatalf("authenticated SendMail: %v", err)
	}
	if h.count() != 1 {
		t.Errorf("processed: got %d, want 1", h.count())
	}
}

func TestServerHandlerFailure(t *testing.T) {
	t.Parallel()

	h := &mockHandler{err: errors.New("database is locked")}
	addr := startServer(t, ServerConfig{Handler: h})

	err := gosmtp.SendMailInsecure(addr, nil, "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader(testMessage))
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 451 {
		t.Errorf("got %v, want 451", err)
	}
}

func TestServerRejectsUnparsableMessage(t *testing.T) {
	t.Parallel()

	h := &mockHandler{}
	addr := startServer(t, ServerConfig{Handler: h})

	err := gosmtp.SendMailInsecure(addr, nil, "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader("this is not a header\r\n\r\nbody\r\n"))
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 554 {
		t.Errorf("got %v, want 554", err)
	}
	if h.count() != 0 {
		t.Errorf("processed: got %d, want 0", h.count())
	}
}

func TestServerMessageTooLarge(t *testing.T) {
	t.Parallel()

	h := &mockHandler{}
	addr := startServer(t, ServerConfig{Handler: h, MaxMessageBytes: 256})

	big := testMessage + strings.Repeat("x", 1024) + "\r\n"
	err := gosmtp.SendMailInsecure(addr, nil, "bob@example.com",
		[]string{"launch@mail.test"}, strings.NewReader(big))
	if err == nil {
		t.Error("expected error for oversized message, got nil")
	}
	if h.count() != 0 {
		t.Errorf("processed: got %d, want 0", h.count())
	}
}

func TestSessionRejectsUnroutableMessage(t *testing.T) {
	t.Parallel()

	h := &mockHandler{}
	s := &session{
		backend: &backend{handler: h, auth: NewAuthenticator("", ""), ctx: context.Background()},
		remote:  "127.0.0.1:1",
		from:    "bob@example.com",
	}

	raw := "From: bob@example.com\r\nSubject: nobody\r\n\r\nhello\r\n"
	err := s.Data(strings.NewReader(raw))
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) || smtpErr.Code != 550 {
		t.Errorf("got %v, want 550", err)
	}
	if h.count() != 0 {
		t.Errorf("processed: got %d, want 0", h.count())
	}
}
