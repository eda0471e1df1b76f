package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shineum/mailthread/internal/email"
	"github.com/shineum/mailthread/internal/ingest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func testMessage(id string, sentAt time.Time) *ingest.Message {
	return &ingest.Message{
		ID:         id,
		BoardID:    "launch",
		CardID:     "card-7",
		MessageID:  id + "@example.com",
		InReplyTo:  "root@example.com",
		References: []string{"root@example.com"},
		From:       "bob@example.com",
		FromName:   "Bob",
		To:         []string{"launch+card-7@example.com"},
		Subject:    "Re: Launch",
		SentAt:     sentAt,
		ReceivedAt: sentAt.Add(time.Minute),
		HTML:       "<div>Ship it</div><div class=\"gmail_quote\"><blockquote>Ready?</blockquote></div>",
		MainHTML:   "<div>Ship it</div>",
		QuotedHTML: "<div class=\"gmail_quote\"><blockquote>Ready?</blockquote></div>",
		Text:       "Ship it\n> Ready?",
		MainText:   "Ship it",
		QuotedText: "> Ready?",
		Attachments: []ingest.Attachment{
			{ID: id + "-a1", MessageID: id, Filename: "chart.png", MimeType: "image/png", ContentID: "chart", Inline: true, Size: 3, Content: []byte("png")},
			{ID: id + "-a2", MessageID: id, Filename: "notes.txt", MimeType: "text/plain", Size: 5, Content: []byte("notes")},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	sentAt := time.Date(2024, 1, 10, 14, 20, 0, 0, time.UTC)
	want := testMessage("m1", sentAt)

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.MainHTML != want.MainHTML || got.QuotedHTML != want.QuotedHTML {
		t.Errorf("html halves: got %q / %q", got.MainHTML, got.QuotedHTML)
	}
	if got.MainText != want.MainText || got.QuotedText != want.QuotedText {
		t.Errorf("text halves: got %q / %q", got.MainText, got.QuotedText)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Errorf("SentAt: got %v, want %v", got.SentAt, sentAt)
	}
	if len(got.References) != 1 || got.References[0] != "root@example.com" {
		t.Errorf("References: got %v", got.References)
	}
	if len(got.To) != 1 || got.To[0] != "launch+card-7@example.com" {
		t.Errorf("To: got %v", got.To)
	}
	if len(got.Cc) != 0 {
		t.Errorf("Cc: got %v, want empty", got.Cc)
	}
	if len(got.Attachments) != 2 {
		t.Fatalf("Attachments: got %d, want 2", len(got.Attachments))
	}
	img := got.Attachments[0]
	if img.ID != "m1-a1" || img.ContentID != "chart" || !img.Inline || string(img.Content) != "png" {
		t.Errorf("Attachments[0]: got %+v", img)
	}
	if got.Attachments[1].Inline {
		t.Error("Attachments[1].Inline: got true, want false")
	}
}

func TestSaveReplaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	msg := testMessage("m1", time.Date(2024, 1, 10, 14, 20, 0, 0, time.UTC))

	if err := s.Save(ctx, msg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	msg.Subject = "Re: Launch (edited)"
	msg.Attachments = msg.Attachments[:1]
	if err := s.Save(ctx, msg); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "Re: Launch (edited)" {
		t.Errorf("Subject: got %q", got.Subject)
	}
	if len(got.Attachments) != 1 {
		t.Errorf("Attachments: got %d, want 1", len(got.Attachments))
	}
}

func TestListByCardAndLatest(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	// Saved out of order on purpose.
	for _, m := range []*ingest.Message{
		testMessage("m2", base.Add(2*time.Hour)),
		testMessage("m1", base),
		testMessage("m3", base.Add(26*time.Hour)),
	} {
		if err := s.Save(ctx, m); err != nil {
			t.Fatalf("Save %s: %v", m.ID, err)
		}
	}
	other := testMessage("x1", base.Add(48*time.Hour))
	other.CardID = "card-8"
	if err := s.Save(ctx, other); err != nil {
		t.Fatalf("Save x1: %v", err)
	}

	list, err := s.ListByCard(ctx, "launch", "card-7")
	if err != nil {
		t.Fatalf("ListByCard: %v", err)
	}
	var ids []string
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	if len(ids) != 3 || ids[0] != "m1" || ids[1] != "m2" || ids[2] != "m3" {
		t.Errorf("ListByCard: got %v, want [m1 m2 m3]", ids)
	}

	latest, err := s.Latest(ctx, "launch", "card-7")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != "m3" {
		t.Errorf("Latest: got %q, want %q", latest.ID, "m3")
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: got %v, want %v", err, ErrNotFound)
	}
	if _, err := s.Latest(ctx, "launch", "none"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest: got %v, want %v", err, ErrNotFound)
	}
	list, err := s.ListByCard(ctx, "launch", "none")
	if err != nil || len(list) != 0 {
		t.Errorf("ListByCard: got %v, %v, want empty", list, err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mail.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Save(ctx, testMessage("m1", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(ctx, "m1"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestPipelineSavesThroughStore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	p := ingest.NewPipeline(s)

	saved, err := p.Process(ctx, &email.Email{
		From:      "bob@example.com",
		MessageID: "reply@example.com",
		Date:      time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		HtmlBody:  `<div>Yes</div><div class="gmail_quote"><blockquote>Lunch?</blockquote></div>`,
	}, ingest.Route{BoardID: "team", CardID: "lunch"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, err := s.Latest(ctx, "team", "lunch")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != saved.ID {
		t.Errorf("ID: got %q, want %q", got.ID, saved.ID)
	}
	if got.MainHTML != "<div>Yes</div>" {
		t.Errorf("MainHTML: got %q, want %q", got.MainHTML, "<div>Yes</div>")
	}
}
