// Package store implements the Event Store (spec.md §4.1, C3): a durable,
// append-only table of events plus their causal edges, backed by SQLite.
// Grounded on the teacher's internal/graph/db.go: same driver, same
// migration-table idiom, same optional sqlite-vec side index with a
// graceful fallback to an in-process scan.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// DB wraps the SQLite connection backing the event store.
type DB struct {
	db   *sql.DB
	path string

	vecAvailable bool
	vecDim       int

	writeMu sync.Mutex // serializes id allocation + insert (spec.md §5)
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	effect_text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	cause_id INTEGER,
	causal_relationship TEXT,
	FOREIGN KEY (cause_id) REFERENCES events(id)
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_cause_id ON events(cause_id);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// Open opens or creates the event store at dbPath, running migrations and
// (best-effort) loading the sqlite-vec extension.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, memerr.Wrap(memerr.KindStorage, "create db directory", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "open database", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, memerr.Wrap(memerr.KindStorage, "ping database", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, memerr.Wrap(memerr.KindStorage, "enable foreign keys", err)
	}

	d := &DB{db: sqlDB, path: dbPath}

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, memerr.Wrap(memerr.KindStorage, "migrate schema", err)
	}

	var vecVersion string
	if err := sqlDB.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		logging.Info("store", "sqlite-vec not available: %v — falling back to full scan", err)
	} else {
		logging.Info("store", "sqlite-vec %s loaded", vecVersion)
		d.vecAvailable = true
		if err := d.initVecTableFromEvents(); err != nil {
			logging.Info("store", "vec init warning: %v", err)
		}
	}

	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert atomically assigns an event_id and timestamp and appends the row.
// Id allocation and the row insert happen in the same statement (SQLite's
// own AUTOINCREMENT sequence), so two concurrent callers can never collide
// (spec.md §3 invariant 1, §5 shared-state policy).
func (d *DB) Insert(effectText string, embedding []float32, causeID *int64, relationship string) (int64, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	embBytes, err := json.Marshal(embedding)
	if err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "marshal embedding", err)
	}

	ts := time.Now().UTC()
	var rel any
	if relationship != "" {
		rel = relationship
	}

	res, err := d.db.Exec(
		`INSERT INTO events (timestamp, effect_text, embedding, cause_id, causal_relationship)
		 VALUES (?, ?, ?, ?, ?)`,
		ts, effectText, embBytes, nullableID(causeID), rel,
	)
	if err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "insert event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, memerr.Wrap(memerr.KindStorage, "read inserted id", err)
	}

	if d.vecAvailable {
		if err := d.ensureVecTable(len(embedding)); err == nil {
			d.upsertVec(id, embedding)
		}
	}

	return id, nil
}

// GetByID returns the event with the given id, or nil if it doesn't exist.
func (d *DB) GetByID(id int64) (*Event, error) {
	row := d.db.QueryRow(
		`SELECT id, timestamp, effect_text, embedding, cause_id, causal_relationship
		 FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "get event by id", err)
	}
	return ev, nil
}

// RecentWithin returns events at or after cutoff, newest first, capped at
// limitHint if positive. Callers compute cutoff themselves (candidate.Params.
// Window does this for the Candidate Finder's time-decay rule) rather than
// passing raw hours, so the window boundary is computed in exactly one place.
func (d *DB) RecentWithin(cutoff time.Time, limitHint int) ([]*Event, error) {
	query := `SELECT id, timestamp, effect_text, embedding, cause_id, causal_relationship
	          FROM events WHERE timestamp >= ? ORDER BY timestamp DESC`
	args := []any{cutoff}
	if limitHint > 0 {
		query += " LIMIT ?"
		args = append(args, limitHint)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "query recent events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// AllForScan returns every event, for the anchor search when no time
// window applies. Acceptable at the targeted scale (spec.md §4.1).
func (d *DB) AllForScan() ([]*Event, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, effect_text, embedding, cause_id, causal_relationship
		 FROM events ORDER BY id`)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "scan all events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ChildrenOf returns events whose cause_id is id, oldest first.
func (d *DB) ChildrenOf(id int64) ([]*Event, error) {
	rows, err := d.db.Query(
		`SELECT id, timestamp, effect_text, embedding, cause_id, causal_relationship
		 FROM events WHERE cause_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "query children", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Stats reports total, linked (non-root) and orphan (root) event counts.
func (d *DB) Stats() (total, linked, orphan int, err error) {
	if err = d.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return 0, 0, 0, memerr.Wrap(memerr.KindStorage, "count events", err)
	}
	if err = d.db.QueryRow(`SELECT COUNT(*) FROM events WHERE cause_id IS NOT NULL`).Scan(&linked); err != nil {
		return 0, 0, 0, memerr.Wrap(memerr.KindStorage, "count linked events", err)
	}
	orphan = total - linked
	return total, linked, orphan, nil
}

// Ping verifies the database connection is alive, for health checks.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// VecAvailable reports whether the optional sqlite-vec accelerator loaded
// successfully for this store (spec.md §6.4 / SPEC_FULL.md §6.4).
func (d *DB) VecAvailable() bool {
	return d.vecAvailable
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func scanEvent(row *sql.Row) (*Event, error) {
	var ev Event
	var embBytes []byte
	var causeID sql.NullInt64
	var relationship sql.NullString

	err := row.Scan(&ev.ID, &ev.Timestamp, &ev.EffectText, &embBytes, &causeID, &relationship)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(embBytes, &ev.Embedding); err != nil {
		return nil, fmt.Errorf("unmarshal embedding: %w", err)
	}
	if causeID.Valid {
		v := causeID.Int64
		ev.CauseID = &v
	}
	ev.CausalRelationship = relationship.String
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var ev Event
		var embBytes []byte
		var causeID sql.NullInt64
		var relationship sql.NullString

		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.EffectText, &embBytes, &causeID, &relationship); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(embBytes, &ev.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
		if causeID.Valid {
			v := causeID.Int64
			ev.CauseID = &v
		}
		ev.CausalRelationship = relationship.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}
