// Package housing manages apartments and their rooms. Deletion is
// guarded: an apartment that still owns rooms, or a room that is still
// referenced by a lease, is never removed.
package housing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

// Service executes housing operations against the store.
type Service struct {
	db *store.DB
}

// NewService creates a housing Service.
func NewService(db *store.DB) *Service {
	return &Service{db: db}
}

// CreateApartment inserts a new apartment.
func (s *Service) CreateApartment(ctx context.Context, name, address string) (types.Apartment, error) {
	if name == "" {
		return types.Apartment{}, fault.Validation("apartment name is required")
	}
	now := time.Now().UTC()
	a := types.Apartment{
		ID:        uuid.New().String(),
		Name:      name,
		Address:   address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Execute(ctx, `
		INSERT INTO apartments (id, name, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Address, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return types.Apartment{}, fmt.Errorf("inserting apartment: %w", err)
	}
	return a, nil
}

// GetApartment loads one apartment.
func (s *Service) GetApartment(ctx context.Context, id string) (types.Apartment, error) {
	var (
		a                types.Apartment
		created, updated string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, name, address, created_at, updated_at FROM apartments WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Address, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fault.NotFound("apartment %s not found", id)
	}
	if err != nil {
		return a, fmt.Errorf("loading apartment %s: %w", id, err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return a, nil
}

// ListApartments returns all apartments by name.
func (s *Service) ListApartments(ctx context.Context) ([]types.Apartment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, address, created_at, updated_at FROM apartments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing apartments: %w", err)
	}
	defer rows.Close()

	var out []types.Apartment
	for rows.Next() {
		var (
			a                types.Apartment
			created, updated string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Address, &created, &updated); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApartment renames or re-addresses an apartment.
func (s *Service) UpdateApartment(ctx context.Context, id, name, address string) (types.Apartment, error) {
	if name == "" {
		return types.Apartment{}, fault.Validation("apartment name is required")
	}
	res, err := s.db.Execute(ctx,
		`UPDATE apartments SET name = ?, address = ?, updated_at = ? WHERE id = ?`,
		name, address, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return types.Apartment{}, fmt.Errorf("updating apartment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Apartment{}, fault.NotFound("apartment %s not found", id)
	}
	return s.GetApartment(ctx, id)
}

// DeleteApartment removes an apartment that owns no rooms.
func (s *Service) DeleteApartment(ctx context.Context, id string) error {
	var rooms int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rooms WHERE apartment_id = ?`, id).Scan(&rooms); err != nil {
		return fmt.Errorf("counting rooms: %w", err)
	}
	if rooms > 0 {
		return fault.Conflict("apartment still owns %d room(s); remove them first", rooms)
	}
	res, err := s.db.Execute(ctx, `DELETE FROM apartments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting apartment %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("apartment %s not found", id)
	}
	return nil
}

// CreateRoom adds a room to an apartment. The room code must be unique
// within the apartment.
func (s *Service) CreateRoom(ctx context.Context, r types.Room) (types.Room, error) {
	if r.ApartmentID == "" || r.Code == "" {
		return types.Room{}, fault.Validation("room requires an apartment and a code")
	}
	if _, err := s.GetApartment(ctx, r.ApartmentID); err != nil {
		return types.Room{}, err
	}
	var dup int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rooms WHERE apartment_id = ? AND code = ?`,
		r.ApartmentID, r.Code).Scan(&dup); err != nil {
		return types.Room{}, fmt.Errorf("checking room code: %w", err)
	}
	if dup > 0 {
		return types.Room{}, fault.Conflict("room code %q already exists in this apartment", r.Code)
	}

	r.ID = uuid.New().String()
	if r.Status == "" {
		r.Status = types.RoomAvailable
	}
	_, err := s.db.Execute(ctx, `
		INSERT INTO rooms (id, apartment_id, code, floor, area, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ApartmentID, r.Code, r.Floor, r.Area, r.Status)
	if err != nil {
		return types.Room{}, fmt.Errorf("inserting room: %w", err)
	}
	return r, nil
}

// GetRoom loads one room.
func (s *Service) GetRoom(ctx context.Context, id string) (types.Room, error) {
	var r types.Room
	err := s.db.QueryRow(ctx,
		`SELECT id, apartment_id, code, floor, area, status FROM rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.ApartmentID, &r.Code, &r.Floor, &r.Area, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fault.NotFound("room %s not found", id)
	}
	if err != nil {
		return r, fmt.Errorf("loading room %s: %w", id, err)
	}
	return r, nil
}

// ListRooms returns an apartment's rooms by code.
func (s *Service) ListRooms(ctx context.Context, apartmentID string) ([]types.Room, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, apartment_id, code, floor, area, status
		FROM rooms WHERE apartment_id = ? ORDER BY code`, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	var out []types.Room
	for rows.Next() {
		var r types.Room
		if err := rows.Scan(&r.ID, &r.ApartmentID, &r.Code, &r.Floor, &r.Area, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRoom updates a room's code, floor and area.
func (s *Service) UpdateRoom(ctx context.Context, r types.Room) (types.Room, error) {
	if r.Code == "" {
		return types.Room{}, fault.Validation("room code is required")
	}
	current, err := s.GetRoom(ctx, r.ID)
	if err != nil {
		return types.Room{}, err
	}
	if r.Code != current.Code {
		var dup int
		if err := s.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM rooms WHERE apartment_id = ? AND code = ? AND id != ?`,
			current.ApartmentID, r.Code, r.ID).Scan(&dup); err != nil {
			return types.Room{}, fmt.Errorf("checking room code: %w", err)
		}
		if dup > 0 {
			return types.Room{}, fault.Conflict("room code %q already exists in this apartment", r.Code)
		}
	}
	if _, err := s.db.Execute(ctx,
		`UPDATE rooms SET code = ?, floor = ?, area = ? WHERE id = ?`,
		r.Code, r.Floor, r.Area, r.ID); err != nil {
		return types.Room{}, fmt.Errorf("updating room %s: %w", r.ID, err)
	}
	return s.GetRoom(ctx, r.ID)
}

// DeleteRoom removes a room that no lease references.
func (s *Service) DeleteRoom(ctx context.Context, id string) error {
	var leases int
	if err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM leases WHERE room_id = ?`, id).Scan(&leases); err != nil {
		return fmt.Errorf("counting leases: %w", err)
	}
	if leases > 0 {
		return fault.Conflict("room is referenced by %d lease(s) and cannot be deleted", leases)
	}
	res, err := s.db.Execute(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.NotFound("room %s not found", id)
	}
	return nil
}
