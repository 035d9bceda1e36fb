package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/echobell/echobell/internal/metrics"
	"github.com/echobell/echobell/internal/models"
)

const sqliteOpTimeout = 10 * time.Second

// eventTimeLayout is fixed width so created_at sorts lexically.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	seed   bool
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
// Call Init before first use to apply the schema.
func NewSQLiteStore(path string, seed bool, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}

	// Writes are serialized by SQLite anyway; keep the pool small.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), sqliteOpTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to sqlite database %s: %w", path, err)
	}

	logger.Info("opened sqlite database", "path", path)
	return NewSQLiteStoreFromDB(db, seed, logger), nil
}

// NewSQLiteStoreFromDB wraps an existing connection pool. The caller keeps ownership
// of schema setup (Init) and may pass any database/sql driver speaking SQLite's dialect.
func NewSQLiteStoreFromDB(db *sql.DB, seed bool, logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, seed: seed, logger: logger}
}

// Init applies pending migrations and, when seeding is enabled, inserts default rows.
func (s *SQLiteStore) Init(ctx context.Context) error {
	done := metrics.TimeOp("init")
	if err := s.migrate(ctx); err != nil {
		done(false)
		return err
	}
	if s.seed {
		if err := s.seedDefaults(ctx); err != nil {
			done(false)
			return err
		}
	}
	done(true)
	return nil
}

// migrate applies every migration newer than PRAGMA user_version, each in its own transaction.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		s.logger.Info("applying migration", "version", m.version, "name", m.name)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: setting user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// seedDefaults inserts the default rule and household rows. Existing rows win.
func (s *SQLiteStore) seedDefaults(ctx context.Context) error {
	rs := DefaultRuleSet()
	hh := DefaultHousehold()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exec := func(query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		return nil
	}

	for _, in := range rs.Intents {
		if err := exec(`INSERT OR IGNORE INTO intent_def (name, description) VALUES (?, ?)`, in.Name, in.Description); err != nil {
			return err
		}
	}
	for _, e := range rs.Entities {
		if err := exec(`INSERT OR IGNORE INTO entity_def (name, tag, intent_hint, weight, enabled) VALUES (?, ?, ?, ?, ?)`,
			e.Name, e.Tag, nullString(e.IntentHint), e.Weight, e.Enabled); err != nil {
			return err
		}
	}
	for _, p := range rs.Patterns {
		if err := exec(`INSERT OR IGNORE INTO pattern_def (id, pattern, is_regex, entity_name, intent_name, weight, enabled) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Pattern, p.IsRegex, nullString(p.Entity), nullString(p.Intent), p.Weight, p.Enabled); err != nil {
			return err
		}
	}
	for _, m := range rs.VisionMappings {
		if err := exec(`INSERT OR IGNORE INTO vision_class_map (model_name, raw_class, semantic_class, enabled) VALUES (?, ?, ?, ?)`,
			m.ModelName, m.RawClass, m.SemanticClass, m.Enabled); err != nil {
			return err
		}
	}

	for k, v := range hh.Settings {
		if err := exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return err
		}
	}
	for name, on := range hh.Features {
		if err := exec(`INSERT OR IGNORE INTO features (name, enabled) VALUES (?, ?)`, name, on); err != nil {
			return err
		}
	}
	for _, m := range hh.Modes {
		if err := exec(`INSERT OR IGNORE INTO modes (name, description, active) VALUES (?, ?, ?)`, m.Name, m.Description, m.Active); err != nil {
			return err
		}
	}
	for _, q := range hh.QuietHours {
		if err := exec(`INSERT OR IGNORE INTO quiet_hours (id, start_hhmm, end_hhmm, days, enabled) VALUES (?, ?, ?, ?, ?)`,
			q.ID, q.Start, q.End, q.Days, q.Enabled); err != nil {
			return err
		}
	}
	for _, n := range hh.Notifiers {
		if err := exec(`INSERT OR IGNORE INTO notifiers (id, kind, target, priority, enabled) VALUES (?, ?, ?, ?, ?)`,
			n.ID, n.Kind, n.Target, n.Priority, n.Enabled); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

// LoadRuleSet reads all rule tables inside one transaction so a concurrent admin
// edit is either fully visible or not at all.
func (s *SQLiteStore) LoadRuleSet(ctx context.Context) (_ *models.RuleSet, err error) {
	done := metrics.TimeOp("load_rules")
	defer func() { done(err == nil) }()

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load rules: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rs := &models.RuleSet{}

	rows, err := tx.QueryContext(ctx, `SELECT name, COALESCE(description, '') FROM intent_def ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load rules: intents: %w", err)
	}
	for rows.Next() {
		var in models.IntentDefinition
		if err = rows.Scan(&in.Name, &in.Description); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load rules: scanning intent: %w", err)
		}
		rs.Intents = append(rs.Intents, in)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load rules: intents: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT name, COALESCE(tag, ''), COALESCE(intent_hint, ''), weight, enabled FROM entity_def ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load rules: entities: %w", err)
	}
	for rows.Next() {
		var e models.EntityDefinition
		if err = rows.Scan(&e.Name, &e.Tag, &e.IntentHint, &e.Weight, &e.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load rules: scanning entity: %w", err)
		}
		rs.Entities = append(rs.Entities, e)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load rules: entities: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, pattern, is_regex, COALESCE(entity_name, ''), COALESCE(intent_name, ''), weight, enabled FROM pattern_def ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load rules: patterns: %w", err)
	}
	for rows.Next() {
		var p models.PatternRule
		if err = rows.Scan(&p.ID, &p.Pattern, &p.IsRegex, &p.Entity, &p.Intent, &p.Weight, &p.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load rules: scanning pattern: %w", err)
		}
		rs.Patterns = append(rs.Patterns, p)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load rules: patterns: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT model_name, raw_class, semantic_class, enabled FROM vision_class_map ORDER BY model_name, raw_class`)
	if err != nil {
		return nil, fmt.Errorf("load rules: vision mappings: %w", err)
	}
	for rows.Next() {
		var m models.VisionClassMapping
		if err = rows.Scan(&m.ModelName, &m.RawClass, &m.SemanticClass, &m.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load rules: scanning vision mapping: %w", err)
		}
		rs.VisionMappings = append(rs.VisionMappings, m)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load rules: vision mappings: %w", err)
	}

	return rs, nil
}

// LoadHousehold reads the household configuration tables in one transaction.
func (s *SQLiteStore) LoadHousehold(ctx context.Context) (_ *models.Household, err error) {
	done := metrics.TimeOp("load_household")
	defer func() { done(err == nil) }()

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("load household: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	hh := &models.Household{
		Settings: make(map[string]string),
		Features: make(map[string]bool),
	}

	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("load household: settings: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err = rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning setting: %w", err)
		}
		hh.Settings[k] = v
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: settings: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT name, enabled FROM features`)
	if err != nil {
		return nil, fmt.Errorf("load household: features: %w", err)
	}
	for rows.Next() {
		var name string
		var on bool
		if err = rows.Scan(&name, &on); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning feature: %w", err)
		}
		hh.Features[name] = on
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: features: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT name, COALESCE(description, ''), active FROM modes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load household: modes: %w", err)
	}
	for rows.Next() {
		var m models.Mode
		if err = rows.Scan(&m.Name, &m.Description, &m.Active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning mode: %w", err)
		}
		hh.Modes = append(hh.Modes, m)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: modes: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, start_hhmm, end_hhmm, days, enabled FROM quiet_hours ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load household: quiet hours: %w", err)
	}
	for rows.Next() {
		var q models.QuietHours
		if err = rows.Scan(&q.ID, &q.Start, &q.End, &q.Days, &q.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning quiet hours: %w", err)
		}
		hh.QuietHours = append(hh.QuietHours, q)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: quiet hours: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, kind, target, priority, enabled FROM notifiers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load household: notifiers: %w", err)
	}
	for rows.Next() {
		var n models.Notifier
		if err = rows.Scan(&n.ID, &n.Kind, &n.Target, &n.Priority, &n.Enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning notifier: %w", err)
		}
		hh.Notifiers = append(hh.Notifiers, n)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: notifiers: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `SELECT id, name, COALESCE(relation, ''), trusted, COALESCE(notes, ''), created_at FROM visitors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load household: visitors: %w", err)
	}
	for rows.Next() {
		var v models.Visitor
		var created string
		if err = rows.Scan(&v.ID, &v.Name, &v.Relation, &v.Trusted, &v.Notes, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load household: scanning visitor: %w", err)
		}
		v.CreatedAt = parseTime(created)
		hh.Visitors = append(hh.Visitors, v)
	}
	if err = closeRows(rows); err != nil {
		return nil, fmt.Errorf("load household: visitors: %w", err)
	}

	return hh, nil
}

// RecordEvent inserts one event row.
func (s *SQLiteStore) RecordEvent(ctx context.Context, ev models.Event) (err error) {
	done := metrics.TimeOp("record_event")
	defer func() { done(err == nil) }()

	if ev.ID == "" {
		return fmt.Errorf("record event: id must not be empty")
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var actions, matched []byte
	if len(ev.Actions) > 0 {
		if actions, err = json.Marshal(ev.Actions); err != nil {
			return fmt.Errorf("record event: marshaling actions: %w", err)
		}
	}
	if len(ev.MatchedRuleIDs) > 0 {
		if matched, err = json.Marshal(ev.MatchedRuleIDs); err != nil {
			return fmt.Errorf("record event: marshaling matched rules: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `INSERT INTO events
        (id, type, intent, confidence, urgency, mode, snapshot_path, transcript, actions, matched_rules, ruleset_version, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Type, nullString(ev.Intent), ev.Confidence, ev.Urgency, nullString(ev.Mode),
		nullString(ev.SnapshotPath), nullString(ev.Transcript), nullBytes(actions), nullBytes(matched),
		int64(ev.RulesetVersion), ev.CreatedAt.UTC().Format(eventTimeLayout)) //nolint:gosec // versions stay far below MaxInt64
	if err != nil {
		return fmt.Errorf("record event %s: %w", ev.ID, err)
	}
	metrics.EventsRecordedTotal.WithLabelValues(ev.Type).Inc()
	return nil
}

// ListEvents returns up to limit events, newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, limit int) (_ []models.Event, err error) {
	done := metrics.TimeOp("list_events")
	defer func() { done(err == nil) }()

	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, type, COALESCE(intent, ''), COALESCE(confidence, 0), COALESCE(urgency, 0),
        COALESCE(mode, ''), COALESCE(snapshot_path, ''), COALESCE(transcript, ''), COALESCE(actions, ''),
        COALESCE(matched_rules, ''), ruleset_version, created_at
        FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var ev models.Event
		var actions, matched, created string
		var version int64
		if err = rows.Scan(&ev.ID, &ev.Type, &ev.Intent, &ev.Confidence, &ev.Urgency, &ev.Mode,
			&ev.SnapshotPath, &ev.Transcript, &actions, &matched, &version, &created); err != nil {
			return nil, fmt.Errorf("list events: scanning: %w", err)
		}
		if actions != "" {
			if err = json.Unmarshal([]byte(actions), &ev.Actions); err != nil {
				return nil, fmt.Errorf("list events: decoding actions of %s: %w", ev.ID, err)
			}
		}
		if matched != "" {
			if err = json.Unmarshal([]byte(matched), &ev.MatchedRuleIDs); err != nil {
				return nil, fmt.Errorf("list events: decoding matched rules of %s: %w", ev.ID, err)
			}
		}
		ev.RulesetVersion = uint64(version) //nolint:gosec // written from a uint64
		ev.CreatedAt = parseTime(created)
		out = append(out, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// CountEventsBefore counts events created strictly before cutoff.
func (s *SQLiteStore) CountEventsBefore(ctx context.Context, cutoff time.Time) (n int, err error) {
	done := metrics.TimeOp("count_events")
	defer func() { done(err == nil) }()

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE created_at < ?`,
		cutoff.UTC().Format(eventTimeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// DeleteEventsBefore removes events created strictly before cutoff.
func (s *SQLiteStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (_ int, err error) {
	done := metrics.TimeOp("delete_events")
	defer func() { done(err == nil) }()

	ctx, cancel := context.WithTimeout(ctx, sqliteOpTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC().Format(eventTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return int(n), nil
}

// SetPatternEnabled toggles a pattern rule by ID.
func (s *SQLiteStore) SetPatternEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.execOne(ctx, "set_pattern_enabled", fmt.Sprintf("pattern %d", id),
		`UPDATE pattern_def SET enabled = ? WHERE id = ?`, enabled, id)
}

// SetEntityEnabled toggles an entity definition by name.
func (s *SQLiteStore) SetEntityEnabled(ctx context.Context, name string, enabled bool) error {
	return s.execOne(ctx, "set_entity_enabled", fmt.Sprintf("entity %q", name),
		`UPDATE entity_def SET enabled = ? WHERE name = ?`, enabled, name)
}

// SetVisionMappingEnabled toggles every row whose normalized (model, raw class) matches.
func (s *SQLiteStore) SetVisionMappingEnabled(ctx context.Context, model, rawClass string, enabled bool) error {
	return s.execOne(ctx, "set_vision_mapping_enabled", fmt.Sprintf("vision mapping %s/%s", model, rawClass),
		`UPDATE vision_class_map SET enabled = ? WHERE lower(trim(model_name)) = ? AND lower(trim(raw_class)) = ?`,
		enabled, foldKey(model), foldKey(rawClass))
}

// UpsertVisionMapping updates the rows matching the normalized (model, raw
// class) or inserts a new lowercased row when none match.
func (s *SQLiteStore) UpsertVisionMapping(ctx context.Context, m models.VisionClassMapping) (err error) {
	done := metrics.TimeOp("upsert_vision_mapping")
	defer func() { done(err == nil) }()

	model := foldKey(m.ModelName)
	raw := foldKey(m.RawClass)
	semantic := strings.TrimSpace(m.SemanticClass)
	if model == "" || raw == "" || semantic == "" {
		return fmt.Errorf("upsert vision mapping: model, raw class and semantic class are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert vision mapping: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE vision_class_map SET semantic_class = ?, enabled = ?
        WHERE lower(trim(model_name)) = ? AND lower(trim(raw_class)) = ?`,
		semantic, m.Enabled, model, raw)
	if err != nil {
		return fmt.Errorf("upsert vision mapping %s/%s: %w", model, raw, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert vision mapping %s/%s: rows affected: %w", model, raw, err)
	}
	if n == 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO vision_class_map (model_name, raw_class, semantic_class, enabled) VALUES (?, ?, ?, ?)`,
			model, raw, semantic, m.Enabled); err != nil {
			return fmt.Errorf("upsert vision mapping %s/%s: %w", model, raw, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("upsert vision mapping: commit: %w", err)
	}
	return nil
}

// SetActiveMode makes name the only active presence mode.
func (s *SQLiteStore) SetActiveMode(ctx context.Context, name string) (err error) {
	done := metrics.TimeOp("set_active_mode")
	defer func() { done(err == nil) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set active mode: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE modes SET active = 1 WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("set active mode %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mode %q: %w", name, ErrNotFound)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE modes SET active = 0 WHERE name <> ?`, name); err != nil {
		return fmt.Errorf("set active mode %q: %w", name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("set active mode: commit: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// execOne runs an update that must touch exactly one row.
func (s *SQLiteStore) execOne(ctx context.Context, op, what, query string, args ...any) (err error) {
	done := metrics.TimeOp(op)
	defer func() { done(err == nil) }()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// parseTime accepts RFC 3339 and SQLite's default "YYYY-MM-DD HH:MM:SS" layout.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
