package store

// migration is one ordered schema step. Version is stored in PRAGMA user_version.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "base",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS settings (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL DEFAULT ''
    )`,
			`CREATE TABLE IF NOT EXISTS features (
        name TEXT PRIMARY KEY,
        enabled INTEGER NOT NULL DEFAULT 0
    )`,
			`CREATE TABLE IF NOT EXISTS modes (
        name TEXT PRIMARY KEY,
        description TEXT,
        active INTEGER NOT NULL DEFAULT 0
    )`,
			`CREATE TABLE IF NOT EXISTS quiet_hours (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        start_hhmm TEXT NOT NULL,
        end_hhmm TEXT NOT NULL,
        days TEXT NOT NULL DEFAULT '*',
        enabled INTEGER NOT NULL DEFAULT 1
    )`,
			`CREATE TABLE IF NOT EXISTS visitors (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        relation TEXT,
        trusted INTEGER NOT NULL DEFAULT 0,
        notes TEXT,
        created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
    )`,
			`CREATE TABLE IF NOT EXISTS notifiers (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        kind TEXT NOT NULL,
        target TEXT NOT NULL,
        priority TEXT NOT NULL DEFAULT 'normal',
        enabled INTEGER NOT NULL DEFAULT 1
    )`,
			`CREATE TABLE IF NOT EXISTS events (
        id TEXT PRIMARY KEY,
        type TEXT NOT NULL,
        intent TEXT,
        confidence REAL,
        urgency INTEGER,
        mode TEXT,
        snapshot_path TEXT,
        transcript TEXT,
        actions TEXT,
        matched_rules TEXT,
        ruleset_version INTEGER NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL
    )`,
			`CREATE TABLE IF NOT EXISTS intent_def (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        description TEXT
    )`,
			`CREATE TABLE IF NOT EXISTS entity_def (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        tag TEXT,
        intent_hint TEXT REFERENCES intent_def(name),
        weight REAL NOT NULL DEFAULT 0.5
    )`,
			`CREATE TABLE IF NOT EXISTS pattern_def (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        pattern TEXT NOT NULL,
        is_regex INTEGER NOT NULL DEFAULT 0,
        entity_name TEXT REFERENCES entity_def(name),
        intent_name TEXT REFERENCES intent_def(name),
        weight REAL NOT NULL DEFAULT 1.0
    )`,
			`CREATE TABLE IF NOT EXISTS vision_class_map (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name TEXT NOT NULL,
        raw_class TEXT NOT NULL,
        semantic_class TEXT NOT NULL,
        enabled INTEGER NOT NULL DEFAULT 1,
        UNIQUE (model_name, raw_class)
    )`,

			`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_events_intent ON events(intent)`,
			`CREATE INDEX IF NOT EXISTS idx_pattern_def_intent ON pattern_def(intent_name)`,
			`CREATE INDEX IF NOT EXISTS idx_pattern_def_entity ON pattern_def(entity_name)`,
			`CREATE INDEX IF NOT EXISTS idx_notifiers_kind_priority ON notifiers(kind, priority)`,
		},
	},
	{
		// Entities and patterns get the same soft-disable switch vision mappings have,
		// so rows stay referenced by the free-text intent column of old events.
		version: 2,
		name:    "rule_enabled_flags",
		statements: []string{
			`ALTER TABLE entity_def ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1`,
			`ALTER TABLE pattern_def ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1`,
		},
	},
}

// latestSchemaVersion is the user_version after all migrations ran.
func latestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}
