// Package store is the device-local persistence layer: three JSON
// collections in a single key/value table. It is the source of truth
// while the remote spreadsheet is unreachable, which is most of the
// time in the field.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
)

const (
	keyMaterials = "materials"
	keyRequests  = "requests"
	keyMovements = "movements"
)

type Store struct {
	db  *sql.DB
	log *slog.Logger
}

func New(db *sql.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log}
}

func (s *Store) get(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM app_state WHERE key = ?`, key,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Error("state read failed", "key", key, "err", err)
		}
		return "", false
	}
	return value, true
}

func (s *Store) set(ctx context.Context, key, value string) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		s.log.Error("state write failed", "key", key, "err", err)
	}
}

// save marshals and writes one collection. Persistence failures are
// non-fatal: the in-memory state stays correct and the next mutation
// retries the write.
func (s *Store) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error("state marshal failed", "key", key, "err", err)
		return
	}
	s.set(ctx, key, string(b))
}

// load unmarshals one collection into out. A missing or unparseable
// value is treated as absent, never as an error.
func (s *Store) load(ctx context.Context, key string, out any) bool {
	value, ok := s.get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		s.log.Warn("discarding unparseable state", "key", key, "err", err)
		return false
	}
	return true
}

// LoadMaterials returns the persisted catalog, falling back to the
// embedded seed catalog on first run (and persisting it so the next
// start is stable). The result is always deduplicated by code.
func (s *Store) LoadMaterials(ctx context.Context) []inventory.Material {
	var ms []inventory.Material
	if !s.load(ctx, keyMaterials, &ms) || len(ms) == 0 {
		seed := inventory.SeedCatalog()
		s.SaveMaterials(ctx, seed)
		return seed
	}
	return inventory.DedupeMaterials(ms)
}

func (s *Store) SaveMaterials(ctx context.Context, ms []inventory.Material) {
	s.save(ctx, keyMaterials, ms)
}

func (s *Store) LoadRequests(ctx context.Context) []inventory.MaterialRequest {
	var rs []inventory.MaterialRequest
	if !s.load(ctx, keyRequests, &rs) {
		return []inventory.MaterialRequest{}
	}
	return inventory.DedupeRequests(rs)
}

func (s *Store) SaveRequests(ctx context.Context, rs []inventory.MaterialRequest) {
	s.save(ctx, keyRequests, rs)
}

func (s *Store) LoadMovements(ctx context.Context) []inventory.StockMovement {
	var ms []inventory.StockMovement
	if !s.load(ctx, keyMovements, &ms) {
		return []inventory.StockMovement{}
	}
	return inventory.DedupeMovements(ms)
}

func (s *Store) SaveMovements(ctx context.Context, ms []inventory.StockMovement) {
	s.save(ctx, keyMovements, ms)
}
