// Package main is the entry point for mailthread.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/shineum/mailthread/internal/config"
)

// initializeAppContext loads the configuration and installs the logger once
// the command line has been parsed.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// nothing to do, help will be shown
		return ctx, nil
	}

	env := envFromContext(ctx)

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return ctx, fmt.Errorf("invalid configuration: %w", err)
	}
	env.cfg = cfg
	env.log = setupLogger(cfg.Logging.Level, os.Stderr)

	env.log.Debug("program started", "args", os.Args)
	return ctx, nil
}

func destroyAppContext(ctx context.Context, _ *cli.Command) (err error) {
	env := envFromContext(ctx)
	if er := env.close(); er != nil {
		err = multierr.Append(err, er)
	}
	env.log.Debug("program ended", "elapsed", time.Since(env.start))
	return err
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	envFromContext(ctx).log.Error("program ended with error", "error", err)
	errWasHandled = true
}

func main() {
	ctx, stop := signal.NotifyContext(contextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	var err error
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = newApp().Run(ctx, os.Args)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "mailthread",
		Usage:           "files email into board cards and keeps replies threaded",
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log at debug level"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Runs the SMTP ingest server",
				Action: runServe,
			},
			{
				Name:      "split",
				Usage:     "Splits a message into authored and quoted content and prints it as JSON",
				ArgsUsage: "FILE (.eml, .html or .txt; - reads an .eml from STDIN)",
				Action:    runSplit,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "board", Usage: "board `ID` used for inline image URLs"},
					&cli.StringFlag{Name: "card", Usage: "card `ID` used for inline image URLs"},
				},
			},
			{
				Name:   "import",
				Usage:  "Imports recent messages from the configured IMAP mailbox",
				Action: runImport,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mailbox", Usage: "override the configured `MAILBOX`"},
					&cli.DurationFlag{Name: "since", Usage: "only import messages received within `DURATION`"},
				},
			},
			{
				Name:      "thread",
				Usage:     "Prints the messages filed on a card as JSON",
				ArgsUsage: "BOARD CARD",
				Action:    runThread,
			},
			{
				Name:      "reply",
				Usage:     "Replies to the latest message on a card",
				ArgsUsage: "BOARD CARD",
				Action:    runReply,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Usage: "reply `TEXT`"},
					&cli.StringFlag{Name: "html", Usage: "reply `HTML`"},
					&cli.StringFlag{Name: "file", Usage: "read the reply from `FILE` (.html or .txt)"},
					&cli.StringSliceFlag{Name: "to", Usage: "override recipients"},
					&cli.StringSliceFlag{Name: "cc", Usage: "add Cc recipients"},
				},
			},
			{
				Name:      "dumpconfig",
				Usage:     "Dumps the active configuration (YAML) with secrets removed",
				ArgsUsage: "DESTINATION",
				Action:    outputConfiguration,
			},
		},
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger installs a JSON slog logger at the given level as the default.
// Command output goes to stdout, so logs are written to w.
func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
