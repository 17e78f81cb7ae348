package repository

type migration struct {
	version int
	sql     string
}

// migrations must be ordered by version, starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'client' CHECK(role IN ('agency', 'client')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS contacts (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	created_by  TEXT REFERENCES users(id) ON DELETE SET NULL,
	assigned_to TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_contacts_created_by ON contacts(created_by);
CREATE INDEX IF NOT EXISTS idx_contacts_assigned_to ON contacts(assigned_to);

CREATE TABLE IF NOT EXISTS opportunities (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	amount      REAL NOT NULL DEFAULT 0,
	stage       TEXT NOT NULL DEFAULT 'LEAD',
	contact_id  TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	created_by  TEXT REFERENCES users(id) ON DELETE SET NULL,
	assigned_to TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	due_date            DATETIME NOT NULL,
	status              TEXT NOT NULL DEFAULT 'PENDING',
	assigned_to         TEXT REFERENCES users(id) ON DELETE SET NULL,
	contact_id          TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	created_by          TEXT REFERENCES users(id) ON DELETE SET NULL,
	notify_via_whatsapp INTEGER NOT NULL DEFAULT 0 CHECK(notify_via_whatsapp IN (0, 1)),
	notify_via_email    INTEGER NOT NULL DEFAULT 0 CHECK(notify_via_email IN (0, 1)),
	notification_sent   INTEGER NOT NULL DEFAULT 0 CHECK(notification_sent IN (0, 1)),
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tasks_due_date ON tasks(due_date);
CREATE INDEX IF NOT EXISTS idx_tasks_pending_notification ON tasks(notification_sent, due_date);

CREATE TABLE IF NOT EXISTS whatsapp_messages (
	id         TEXT PRIMARY KEY,
	phone      TEXT NOT NULL,
	message    TEXT NOT NULL,
	status     TEXT NOT NULL CHECK(status IN ('sent', 'failed')),
	error      TEXT NOT NULL DEFAULT '',
	sent_by    TEXT NOT NULL,
	contact_id TEXT REFERENCES contacts(id) ON DELETE SET NULL,
	sent_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_whatsapp_messages_sent_at ON whatsapp_messages(sent_at);
`,
	},
}
