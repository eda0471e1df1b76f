package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// shutdownTimeout is the maximum time to wait for in-flight connections
// during graceful shutdown.
const shutdownTimeout = 30 * time.Second

// DefaultMaxMessageBytes bounds a single message when the config sets no limit.
const DefaultMaxMessageBytes = 25 * 1024 * 1024

// ServerConfig holds the configuration for an SMTP server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":2525").
	ListenAddr string

	// Hostname is the server hostname used in the greeting and EHLO.
	Hostname string

	// Handler receives every accepted message.
	Handler Handler

	// DefaultBoard files messages whose recipients name no board.
	DefaultBoard string

	// TLSConfig enables STARTTLS. If nil, STARTTLS is not advertised.
	TLSConfig *tls.Config

	// AuthUsername and AuthPassword configure SMTP AUTH.
	// If both are empty, authentication is not required.
	AuthUsername string
	AuthPassword string

	MaxMessageBytes int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Server accepts mail and hands each message to the configured Handler.
type Server struct {
	config   ServerConfig
	auth     *Authenticator
	listener net.Listener
}

// New creates a new SMTP Server with the given configuration.
func New(cfg ServerConfig) *Server {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	return &Server{
		config: cfg,
		auth:   NewAuthenticator(cfg.AuthUsername, cfg.AuthPassword),
	}
}

// Listen opens the listening socket. ListenAndServe calls it; tests call it
// directly to learn the bound address before serving.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.listener = ln
	return nil
}

// ListenAndServe starts the SMTP server and blocks until the context is
// cancelled. On cancellation it stops accepting connections and waits up to
// 30 seconds for in-flight sessions.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts connections on the listener opened by Listen.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("smtp server is not listening")
	}

	srv := gosmtp.NewServer(&backend{
		handler:      s.config.Handler,
		auth:         s.auth,
		defaultBoard: s.config.DefaultBoard,
		ctx:          ctx,
	})
	srv.Addr = s.config.ListenAddr
	srv.Domain = s.config.Hostname
	srv.MaxMessageBytes = s.config.MaxMessageBytes
	srv.MaxRecipients = 50
	srv.ReadTimeout = s.config.ReadTimeout
	srv.WriteTimeout = s.config.WriteTimeout
	srv.TLSConfig = s.config.TLSConfig
	// AUTH is offered in the clear only when STARTTLS is unavailable.
	srv.AllowInsecureAuth = s.config.TLSConfig == nil

	slog.Info("SMTP server listening",
		"addr", s.listener.Addr().String(),
		"domain", s.config.Hostname,
		"auth_enabled", s.auth.Enabled(),
		"tls_enabled", s.config.TLSConfig != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, gosmtp.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("smtp server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down SMTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown timeout reached, forcing close", "error", err)
		srv.Close()
	}
	<-errCh
	slog.Info("all sessions completed")
	return nil
}

// Addr returns the listener address, or empty string if not listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
