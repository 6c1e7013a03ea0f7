package store

// Schema creates the pif tables.
const Schema = `
CREATE TABLE IF NOT EXISTS pif_loads (
	id          TEXT PRIMARY KEY,
	page_id     TEXT NOT NULL,
	page_url    TEXT NOT NULL DEFAULT '',
	placeholder INTEGER NOT NULL,
	role        TEXT NOT NULL CHECK(role IN ('low','high')),
	url         TEXT NOT NULL,
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	format      TEXT NOT NULL DEFAULT '',
	bytes       INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	loaded_at   INTEGER NOT NULL,
	UNIQUE(page_id, placeholder, role)
);
CREATE INDEX IF NOT EXISTS idx_loads_page ON pif_loads(page_id, loaded_at);

CREATE TABLE IF NOT EXISTS pif_reports (
	id           TEXT PRIMARY KEY,
	page_id      TEXT NOT NULL,
	page_url     TEXT NOT NULL DEFAULT '',
	placeholders INTEGER NOT NULL,
	requested    INTEGER NOT NULL,
	loaded       INTEGER NOT NULL,
	pending      INTEGER NOT NULL,
	appended     INTEGER NOT NULL,
	html_hash    TEXT NOT NULL,
	items        TEXT NOT NULL DEFAULT '[]',
	settle_ms    INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_page ON pif_reports(page_id, created_at);
`
