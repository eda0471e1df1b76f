package store

// migration is one schema step. Versions are sequential from 1.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	board_id    TEXT NOT NULL DEFAULT '',
	card_id     TEXT NOT NULL DEFAULT '',
	message_id  TEXT NOT NULL DEFAULT '',
	in_reply_to TEXT NOT NULL DEFAULT '',
	refs        TEXT NOT NULL DEFAULT '[]',
	from_addr   TEXT NOT NULL DEFAULT '',
	from_name   TEXT NOT NULL DEFAULT '',
	to_addrs    TEXT NOT NULL DEFAULT '[]',
	cc_addrs    TEXT NOT NULL DEFAULT '[]',
	subject     TEXT NOT NULL DEFAULT '',
	sent_at     DATETIME NOT NULL,
	received_at DATETIME NOT NULL,
	html        TEXT NOT NULL DEFAULT '',
	main_html   TEXT NOT NULL DEFAULT '',
	quoted_html TEXT NOT NULL DEFAULT '',
	styles      TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL DEFAULT '',
	main_text   TEXT NOT NULL DEFAULT '',
	quoted_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_messages_card ON messages(board_id, card_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_messages_message_id ON messages(message_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS attachments (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	filename   TEXT NOT NULL DEFAULT '',
	mime_type  TEXT NOT NULL DEFAULT '',
	content_id TEXT NOT NULL DEFAULT '',
	inline     INTEGER NOT NULL DEFAULT 0,
	size       INTEGER NOT NULL DEFAULT 0,
	content    BLOB
);

CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id, position);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
