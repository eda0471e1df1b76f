// Package imap imports existing mail from an IMAP mailbox.
package imap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/multierr"
)

// DefaultLimit is the number of messages fetched when Config.Limit is unset.
const DefaultLimit = 50

// Config holds the mailbox connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Mailbox  string
	// TLS dials implicit TLS. Otherwise the connection is upgraded with
	// STARTTLS.
	TLS bool
	// Limit caps the import to the most recent messages.
	Limit int
	// Since restricts the search to messages received within the window.
	Since time.Duration
}

// HandleFunc receives the raw RFC 5322 bytes of one message.
type HandleFunc func(ctx context.Context, uid uint32, raw []byte) error

// Result reports the outcome of an import run.
type Result struct {
	Fetched  int
	Imported int
}

// Importer fetches messages over IMAP.
type Importer struct {
	cfg Config
	log *slog.Logger
}

// NewImporter creates an Importer. Missing mailbox and limit fall back to
// INBOX and DefaultLimit.
func NewImporter(cfg Config, log *slog.Logger) *Importer {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Port == "" {
		cfg.Port = "993"
		if !cfg.TLS {
			cfg.Port = "143"
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Importer{cfg: cfg, log: log}
}

func (im *Importer) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(im.cfg.Host, im.cfg.Port)

	var (
		client *imapclient.Client
		err    error
	)
	if im.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(im.cfg.Username, im.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", im.cfg.Username, err)
	}
	return client, nil
}

// Import fetches the most recent messages of the mailbox and passes each
// one to handle. A failing message is logged and skipped; the failures are
// returned together once the run completes.
func (im *Importer) Import(ctx context.Context, handle HandleFunc) (Result, error) {
	var res Result

	client, err := im.connect()
	if err != nil {
		return res, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(im.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return res, fmt.Errorf("selecting %s: %w", im.cfg.Mailbox, err)
	}

	criteria := &imap.SearchCriteria{}
	if im.cfg.Since > 0 {
		criteria.Since = time.Now().Add(-im.cfg.Since)
	}
	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return res, fmt.Errorf("searching messages: %w", err)
	}

	uids := recent(data.AllUIDs(), im.cfg.Limit)
	if len(uids) == 0 {
		im.log.Info("no messages to import", "mailbox", im.cfg.Mailbox)
		return res, nil
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetch := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetch.Close()

	var errs error
	for {
		if err := ctx.Err(); err != nil {
			return res, multierr.Append(errs, err)
		}

		msg := fetch.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("collecting message: %w", err))
			continue
		}
		res.Fetched++

		raw := buf.FindBodySection(section)
		if len(raw) == 0 {
			im.log.Warn("message has no body", "uid", buf.UID)
			continue
		}
		if err := handle(ctx, uint32(buf.UID), raw); err != nil {
			im.log.Warn("failed to import message", "uid", buf.UID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("uid %d: %w", buf.UID, err))
			continue
		}
		res.Imported++
	}

	if err := fetch.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("fetching messages: %w", err))
	}

	im.log.Info("import finished",
		"mailbox", im.cfg.Mailbox,
		"fetched", res.Fetched,
		"imported", res.Imported,
	)
	return res, errs
}

// recent keeps the last limit UIDs, which are the newest in a mailbox.
func recent(uids []imap.UID, limit int) []imap.UID {
	if limit > 0 && len(uids) > limit {
		return uids[len(uids)-limit:]
	}
	return uids
}
