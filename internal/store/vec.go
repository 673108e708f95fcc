package store

import (
	"encoding/json"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
)

// initVecTableFromEvents determines the embedding dimension from one
// existing event and (re)creates event_vec, backfilling all rows. No-op on
// a fresh store. Grounded on the teacher's initVecTableFromTraces.
func (d *DB) initVecTableFromEvents() error {
	var embBytes []byte
	err := d.db.QueryRow(`SELECT embedding FROM events WHERE LENGTH(embedding) > 4 LIMIT 1`).Scan(&embBytes)
	if err != nil {
		return nil // no events yet; deferred to first Insert
	}
	var emb []float32
	if err := json.Unmarshal(embBytes, &emb); err != nil || len(emb) == 0 {
		return nil
	}
	return d.ensureVecTable(len(emb))
}

// ensureVecTable creates the event_vec virtual table for the given
// dimension (if not already created) and backfills existing events.
// Idempotent for the same dimension; this is a storage-engine optimisation
// of the exact scan described in spec.md §4.1 — vec0 with no approximation
// parameters still performs exact brute-force distance computation.
func (d *DB) ensureVecTable(dim int) error {
	if d.vecDim == dim {
		return nil
	}
	if d.vecDim != 0 && d.vecDim != dim {
		return memerr.New(memerr.KindInternal, "embedding dimension mismatch with event_vec table")
	}

	createSQL := `CREATE VIRTUAL TABLE IF NOT EXISTS event_vec USING vec0(
		embedding float[` + strconv.Itoa(dim) + `] distance_metric=cosine,
		+event_id INTEGER
	)`
	if _, err := d.db.Exec(createSQL); err != nil {
		return memerr.Wrap(memerr.KindStorage, "create event_vec table", err)
	}
	d.vecDim = dim

	rows, err := d.db.Query(`SELECT id, embedding FROM events`)
	if err != nil {
		return nil // backfill failure is non-fatal
	}
	defer rows.Close()

	tx, err := d.db.Begin()
	if err != nil {
		return nil
	}
	var count int
	for rows.Next() {
		var id int64
		var embBytes []byte
		if err := rows.Scan(&id, &embBytes); err != nil {
			continue
		}
		var emb []float32
		if err := json.Unmarshal(embBytes, &emb); err != nil || len(emb) != dim {
			continue
		}
		serialized, err := sqlite_vec.SerializeFloat32(emb)
		if err != nil {
			continue
		}
		tx.Exec(`DELETE FROM event_vec WHERE rowid = ?`, id)
		if _, err := tx.Exec(`INSERT INTO event_vec(rowid, embedding, event_id) VALUES (?, ?, ?)`, id, serialized, id); err != nil {
			logging.Debug("store", "vec backfill failed for event %d: %v", id, err)
			continue
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return nil
	}
	if count > 0 {
		logging.Info("store", "vec backfill: indexed %d events (dim=%d)", count, dim)
	}
	return nil
}

// upsertVec indexes a single newly inserted event into event_vec.
func (d *DB) upsertVec(id int64, embedding []float32) {
	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return
	}
	d.db.Exec(`DELETE FROM event_vec WHERE rowid = ?`, id)
	d.db.Exec(`INSERT INTO event_vec(rowid, embedding, event_id) VALUES (?, ?, ?)`, id, serialized, id)
}

// NearestByEmbedding returns the k nearest events to embedding, ordered by
// increasing cosine distance (decreasing similarity), via a vec0 KNN MATCH
// query against event_vec. The column is declared with distance_metric=
// cosine, so this ordering agrees with vectormath.CosineSimilarity exactly.
// Only valid when VecAvailable reports true.
func (d *DB) NearestByEmbedding(embedding []float32, k int) ([]*Event, error) {
	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "serialize query embedding", err)
	}

	rows, err := d.db.Query(
		`SELECT e.id, e.timestamp, e.effect_text, e.embedding, e.cause_id, e.causal_relationship
		 FROM event_vec v
		 JOIN events e ON e.id = v.event_id
		 WHERE v.embedding MATCH ? AND k = ?
		 ORDER BY v.distance`,
		serialized, k,
	)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "vec knn query", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}
