package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/shineum/mailthread/internal/config"
	"github.com/shineum/mailthread/internal/ingest"
	"github.com/shineum/mailthread/internal/quote"
	"github.com/shineum/mailthread/internal/store"
)

type envKey struct{}

// appEnv is the state shared by all commands.
type appEnv struct {
	cfg   *config.Config
	log   *slog.Logger
	store *store.SQLiteStore
	start time.Time
}

func contextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &appEnv{start: time.Now(), log: slog.Default()})
}

func envFromContext(ctx context.Context) *appEnv {
	if env, ok := ctx.Value(envKey{}).(*appEnv); ok {
		return env
	}
	panic("app env not found in context")
}

// openStore opens the database on first use.
func (e *appEnv) openStore() (*store.SQLiteStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	s, err := store.NewSQLiteStore(e.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", e.cfg.Store.Path, err)
	}
	e.log.Debug("store opened", "path", e.cfg.Store.Path)
	e.store = s
	return s, nil
}

func (e *appEnv) segmenter() *quote.Segmenter {
	return quote.New(quote.WithMaxDepth(e.cfg.Segment.MaxDepth), quote.WithLogger(e.log))
}

// pipeline returns an ingest pipeline saving to sink.
func (e *appEnv) pipeline(sink ingest.Sink) *ingest.Pipeline {
	return ingest.NewPipeline(sink,
		ingest.WithSegmenter(e.segmenter()),
		ingest.WithImageURLTemplate(e.cfg.Images.URLTemplate),
		ingest.WithLogger(e.log),
	)
}

func (e *appEnv) close() (err error) {
	if e.store != nil {
		if er := e.store.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close store: %w", er))
		}
		e.store = nil
	}
	return err
}
