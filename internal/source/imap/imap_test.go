package imap

import (
	"context"
	"net"
	"slices"
	"testing"

	"github.com/emersion/go-imap/v2"
)

func TestRecent(t *testing.T) {
	t.Parallel()

	uids := []imap.UID{3, 7, 9, 12}
	tests := []struct {
		name  string
		limit int
		want  []imap.UID
	}{
		{name: "under limit", limit: 10, want: uids},
		{name: "at limit", limit: 4, want: uids},
		{name: "over limit", limit: 2, want: []imap.UID{9, 12}},
		{name: "no limit", limit: 0, want: uids},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := recent(uids, tt.limit); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewImporterDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		wantPort string
	}{
		{name: "implicit tls", cfg: Config{Host: "imap.example.com", TLS: true}, wantPort: "993"},
		{name: "starttls", cfg: Config{Host: "imap.example.com"}, wantPort: "143"},
		{name: "explicit port", cfg: Config{Host: "imap.example.com", Port: "1143"}, wantPort: "1143"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			im := NewImporter(tt.cfg, nil)
			if im.cfg.Port != tt.wantPort {
				t.Errorf("Port: got %q, want %q", im.cfg.Port, tt.wantPort)
			}
			if im.cfg.Mailbox != "INBOX" {
				t.Errorf("Mailbox: got %q, want %q", im.cfg.Mailbox, "INBOX")
			}
			if im.cfg.Limit != DefaultLimit {
				t.Errorf("Limit: got %d, want %d", im.cfg.Limit, DefaultLimit)
			}
			if im.log == nil {
				t.Error("logger is nil")
			}
		})
	}
}

func TestImportConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	im := NewImporter(Config{Host: host, Port: port}, nil)
	called := false
	_, err = im.Import(context.Background(), func(context.Context, uint32, []byte) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if called {
		t.Error("handler called without a connection")
	}
}
