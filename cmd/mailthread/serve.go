package main

import (
	"context"
	"crypto/tls"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/shineum/mailthread/internal/smtp"
	smtptls "github.com/shineum/mailthread/internal/tls"
)

func runServe(ctx context.Context, _ *cli.Command) error {
	env := envFromContext(ctx)
	cfg := env.cfg

	st, err := env.openStore()
	if err != nil {
		return err
	}

	var (
		tlsConfig *tls.Config
		tlsMode   = "disabled"
	)
	if !cfg.TLS.Disabled {
		tlsConfig, err = smtptls.LoadOrGenerateTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.SMTP.Hostname)
		if err != nil {
			return fmt.Errorf("failed to setup TLS: %w", err)
		}
		tlsMode = "self-signed"
		if cfg.TLS.CertFile != "" {
			tlsMode = "file"
		}
	}

	server := smtp.New(smtp.ServerConfig{
		ListenAddr:      cfg.SMTP.Listen,
		Hostname:        cfg.SMTP.Hostname,
		Handler:         env.pipeline(st),
		DefaultBoard:    cfg.Images.DefaultBoard,
		TLSConfig:       tlsConfig,
		AuthUsername:    cfg.SMTP.Username,
		AuthPassword:    cfg.SMTP.Password,
		MaxMessageBytes: cfg.SMTP.MaxMessageSize,
		ReadTimeout:     cfg.SMTP.ReadTimeout,
		WriteTimeout:    cfg.SMTP.WriteTimeout,
	})

	env.log.Info("starting mailthread",
		"listen", cfg.SMTP.Listen,
		"store", cfg.Store.Path,
		"default_board", cfg.Images.DefaultBoard,
		"auth_enabled", cfg.AuthEnabled(),
		"tls_mode", tlsMode,
	)

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	env.log.Info("mailthread stopped")
	return nil
}
