package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/parser"
)

func runSplit(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)

	src := cmd.Args().First()
	if src == "" {
		return errors.New("no input file given")
	}
	if cmd.Args().Len() > 1 {
		env.log.Warn("malformed command line, too many inputs", "ignoring", cmd.Args().Slice()[1:])
	}

	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", src, err)
	}

	route := ingest.Route{BoardID: cmd.String("board"), CardID: cmd.String("card")}
	out, err := split(env, src, data, route)
	if err != nil {
		return err
	}
	return writeJSON(os.Stdout, out)
}

// split segments data by the kind of file it came from.
func split(env *appEnv, name string, data []byte, route ingest.Route) (any, error) {
	seg := env.segmenter()

	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return seg.ParseHTMLBody(string(data)), nil
	case ".txt", ".text":
		return seg.ParseTextBody(string(data)), nil
	default:
		msg, err := parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("unable to parse %s: %w", name, err)
		}
		if route.BoardID == "" || route.CardID == "" {
			auto, err := ingest.RouteFor(nil, msg, env.cfg.Images.DefaultBoard)
			if err == nil {
				if route.BoardID == "" {
					route.BoardID = auto.BoardID
				}
				if route.CardID == "" {
					route.CardID = auto.CardID
				}
			}
		}
		return env.pipeline(nil).Split(msg, route), nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}
