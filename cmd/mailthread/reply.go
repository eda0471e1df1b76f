package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/shineum/mailthread/internal/compose"
	"github.com/shineum/mailthread/internal/config"
	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/provider"
	"github.com/shineum/mailthread/internal/provider/ses"
	"github.com/shineum/mailthread/internal/provider/stdout"
)

func runThread(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)

	board, card, err := cardArgs(cmd)
	if err != nil {
		return err
	}
	st, err := env.openStore()
	if err != nil {
		return err
	}
	msgs, err := st.ListByCard(ctx, board, card)
	if err != nil {
		return fmt.Errorf("unable to list card %s/%s: %w", board, card, err)
	}
	return writeJSON(os.Stdout, msgs)
}

func runReply(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	cfg := env.cfg

	board, card, err := cardArgs(cmd)
	if err != nil {
		return err
	}
	in, err := replyInput(cmd, cfg)
	if err != nil {
		return err
	}

	st, err := env.openStore()
	if err != nil {
		return err
	}
	prior, err := st.Latest(ctx, board, card)
	if err != nil {
		return fmt.Errorf("unable to load latest message of %s/%s: %w", board, card, err)
	}

	prov, err := selectProvider(ctx, cfg)
	if err != nil {
		return err
	}

	reply := compose.Reply(prior, in)
	if err := prov.Send(ctx, reply); err != nil {
		return fmt.Errorf("unable to send reply via %s: %w", prov.Name(), err)
	}

	// File the sent reply on the same card so the thread stays complete.
	saved, err := env.pipeline(st).Process(ctx, reply, ingest.Route{BoardID: board, CardID: card})
	if err != nil {
		return fmt.Errorf("reply sent but not stored: %w", err)
	}
	env.log.Info("reply filed",
		"id", saved.ID,
		"message_id", reply.MessageID,
		"in_reply_to", reply.InReplyTo,
		"provider", prov.Name(),
	)
	return nil
}

func cardArgs(cmd *cli.Command) (board, card string, err error) {
	if cmd.Args().Len() != 2 {
		return "", "", errors.New("expected BOARD and CARD arguments")
	}
	return cmd.Args().Get(0), cmd.Args().Get(1), nil
}

func replyInput(cmd *cli.Command, cfg *config.Config) (compose.ReplyInput, error) {
	in := compose.ReplyInput{
		From:     cfg.ReplyFrom(),
		FromName: cfg.Reply.FromName,
		To:       cmd.StringSlice("to"),
		Cc:       cmd.StringSlice("cc"),
		Text:     cmd.String("text"),
		HTML:     cmd.String("html"),
	}
	if in.From == "" {
		return in, errors.New("reply requires REPLY_FROM or SES_SENDER")
	}

	if name := cmd.String("file"); name != "" {
		data, err := os.ReadFile(name)
		if err != nil {
			return in, fmt.Errorf("unable to read %s: %w", name, err)
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".html", ".htm":
			in.HTML = string(data)
		default:
			in.Text = string(data)
		}
	}
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.HTML) == "" {
		return in, errors.New("reply is empty: use --text, --html or --file")
	}
	return in, nil
}

// selectProvider builds the configured delivery backend.
func selectProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ses":
		p, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil
	case "stdout":
		return stdout.New(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
