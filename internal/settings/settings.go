// Package settings is a typed configuration repository over the key→JSON
// settings table. Callers never see the storage shape: values go in and
// out as Go types.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vuquang/nhatro/internal/store"
)

// Repository reads and writes typed settings.
type Repository struct {
	db store.Querier
}

// NewRepository creates a Repository over the given store.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// Set stores v under key, replacing any previous value.
func (r *Repository) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}
	_, err = r.db.Execute(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, string(raw))
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into out. It returns found=false
// (and leaves out untouched) when the key has never been set.
func (r *Repository) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decoding setting %q: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Execute(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

// Get is the generic typed read: it returns nil when the key is unset.
func Get[T any](ctx context.Context, r *Repository, key string) (*T, error) {
	var v T
	found, err := r.Get(ctx, key, &v)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}
