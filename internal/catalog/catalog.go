// Package catalog implements wake's persistent build cache: a single
// SQLite database (wake.db) recording every job run, the files it
// touched, and their content hashes. A later build with an identical
// fingerprint replays the prior result instead of re-forking a process.
package catalog

import (
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wake-build/wake/internal/wakehash"
)

// Catalog wraps one opened wake.db. All mutating operations run inside a
// transaction.
type Catalog struct {
	db     *sql.DB
	SipKey wakehash.SipKey

	RunID  int64
	RunTag string // uuid identifying this process's run, for log correlation across concurrent wake invocations
	seen   *SeenFilter
}

// ErrSchemaMismatch is returned by Open when an existing wake.db was
// written by an incompatible schema version.
type ErrSchemaMismatch struct {
	Found string
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("wake.db produced by an incompatible version (%q); remove it", e.Found)
}

// Open opens (creating if absent) path as a wake.db, sets the mandated
// PRAGMAs, and starts a new run row. wait controls SQLITE_BUSY behavior:
// true sleeps a second and retries forever, false fails immediately.
func Open(path string, wait bool) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // locking_mode=exclusive: one connection, always

	pragmas := []string{
		"PRAGMA auto_vacuum=incremental",
		"PRAGMA journal_mode=wal",
		"PRAGMA synchronous=0",
		"PRAGMA locking_mode=exclusive",
		"PRAGMA foreign_keys=on",
	}
	for _, p := range pragmas {
		if _, err := execBusy(db, wait, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: creating schema: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM schema`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: reading schema table: %w", err)
	}
	var sipKeyHex string
	if count == 0 {
		// The SipHash key is generated once per DB and persisted, not
		// regenerated on every open: internal term/value hashes stored in
		// this DB must stay stable across wake invocations.
		sipKeyHex, err = newSipKeyHex()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: generating sipkey: %w", err)
		}
		if _, err := db.Exec(`INSERT INTO schema(version, sipkey) VALUES (?, ?)`, SchemaVersion, sipKeyHex); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: stamping schema version: %w", err)
		}
	} else {
		var version string
		if err := db.QueryRow(`SELECT version, sipkey FROM schema LIMIT 1`).Scan(&version, &sipKeyHex); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: reading schema version: %w", err)
		}
		if version != SchemaVersion {
			db.Close()
			return nil, &ErrSchemaMismatch{Found: version}
		}
	}

	sipKey, err := parseSipKeyHex(sipKeyHex)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}

	c := &Catalog{db: db, seen: NewSeenFilter(), RunTag: uuid.NewString(), SipKey: sipKey}

	res, err := db.Exec(`INSERT INTO runs(time) VALUES (?)`, time.Now().Unix())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: starting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: reading run id: %w", err)
	}
	c.RunID = runID

	if err := c.loadSeenFilter(); err != nil {
		db.Close()
		return nil, err
	}

	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

// newSipKeyHex draws 16 fresh entropy bytes for a new DB's SipHash key.
func newSipKeyHex() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

func parseSipKeyHex(s string) (wakehash.SipKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 16 {
		return wakehash.SipKey{}, fmt.Errorf("malformed sipkey %q", s)
	}
	return wakehash.SipKey{
		K0: binary.BigEndian.Uint64(raw[0:8]),
		K1: binary.BigEndian.Uint64(raw[8:16]),
	}, nil
}

// execBusy retries on SQLITE_BUSY when wait is set, sleeping one second
// between attempts.
func execBusy(db *sql.DB, wait bool, query string, args ...interface{}) (sql.Result, error) {
	for {
		res, err := db.Exec(query, args...)
		if err == nil || !wait || !isBusy(err) {
			return res, err
		}
		time.Sleep(time.Second)
	}
}

func isBusy(err error) bool {
	// modernc.org/sqlite wraps SQLITE_BUSY in an *sqlite.Error; string
	// match keeps this free of a direct type-assertion dependency on its
	// internal error type, which isn't part of its stable API surface.
	return err != nil && (contains(err.Error(), "SQLITE_BUSY") || contains(err.Error(), "database is locked"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// withTxn runs fn inside a single transaction, committing on success and
// rolling back on any error or panic, the Go equivalent of
// begin_txn/end_txn framing multi-statement updates as one unit.
func (c *Catalog) withTxn(fn func(*sql.Tx) error) (err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin_txn: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: end_txn: %w", err)
	}
	return nil
}

// Stats is a point-in-time snapshot of the catalog's row counts.
type Stats struct {
	Jobs  int64
	Files int64
	Runs  int64
}

func (c *Catalog) Stats() (Stats, error) {
	var s Stats
	if err := c.db.QueryRow(`SELECT count(*) FROM jobs`).Scan(&s.Jobs); err != nil {
		return Stats{}, err
	}
	if err := c.db.QueryRow(`SELECT count(*) FROM files`).Scan(&s.Files); err != nil {
		return Stats{}, err
	}
	if err := c.db.QueryRow(`SELECT count(*) FROM runs`).Scan(&s.Runs); err != nil {
		return Stats{}, err
	}
	return s, nil
}
