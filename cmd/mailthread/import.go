package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/parser"
	"github.com/shineum/mailthread/internal/source/imap"
)

func runImport(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	cfg := env.cfg

	if !cfg.IMAPConfigured() {
		return errors.New("import requires IMAP_HOST and IMAP_USERNAME")
	}

	st, err := env.openStore()
	if err != nil {
		return err
	}
	pipeline := env.pipeline(st)

	mailbox := cfg.IMAP.Mailbox
	if v := cmd.String("mailbox"); v != "" {
		mailbox = v
	}
	importer := imap.NewImporter(imap.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		Mailbox:  mailbox,
		TLS:      cfg.IMAP.TLS,
		Limit:    cfg.IMAP.Limit,
		Since:    cmd.Duration("since"),
	}, env.log)

	res, err := importer.Import(ctx, func(ctx context.Context, _ uint32, raw []byte) error {
		msg, err := parser.Parse(raw)
		if err != nil {
			return fmt.Errorf("unable to parse message: %w", err)
		}
		route, err := ingest.RouteFor(nil, msg, cfg.Images.DefaultBoard)
		if err != nil {
			return err
		}
		_, err = pipeline.Process(ctx, msg, route)
		return err
	})
	env.log.Info("import completed", "fetched", res.Fetched, "imported", res.Imported)
	return err
}
