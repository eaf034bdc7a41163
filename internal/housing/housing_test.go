package housing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vuquang/nhatro/internal/fault"
	"github.com/vuquang/nhatro/internal/store"
	"github.com/vuquang/nhatro/internal/types"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return NewService(db)
}

func TestApartmentCRUD(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	apt, err := svc.CreateApartment(ctx, "Nhà trọ 12A", "12A Lê Lợi")
	require.NoError(t, err)
	require.NotEmpty(t, apt.ID)

	got, err := svc.GetApartment(ctx, apt.ID)
	require.NoError(t, err)
	require.Equal(t, "Nhà trọ 12A", got.Name)

	updated, err := svc.UpdateApartment(ctx, apt.ID, "Nhà trọ 12B", "12B Lê Lợi")
	require.NoError(t, err)
	require.Equal(t, "Nhà trọ 12B", updated.Name)

	all, err := svc.ListApartments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.GetApartment(ctx, "missing")
	require.True(t, fault.IsKind(err, fault.KindNotFound), "got %v", err)
}

func TestDeleteApartment_BlockedByRooms(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	apt, err := svc.CreateApartment(ctx, "Nhà trọ 12A", "")
	require.NoError(t, err)
	room, err := svc.CreateRoom(ctx, types.Room{ApartmentID: apt.ID, Code: "P101"})
	require.NoError(t, err)

	err = svc.DeleteApartment(ctx, apt.ID)
	require.True(t, fault.IsKind(err, fault.KindConflict), "got %v", err)

	require.NoError(t, svc.DeleteRoom(ctx, room.ID))
	require.NoError(t, svc.DeleteApartment(ctx, apt.ID))
}

func TestCreateRoom_CodeUniquePerApartment(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.CreateApartment(ctx, "A", "")
	require.NoError(t, err)
	b, err := svc.CreateApartment(ctx, "B", "")
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, types.Room{ApartmentID: a.ID, Code: "P101"})
	require.NoError(t, err)

	_, err = svc.CreateRoom(ctx, types.Room{ApartmentID: a.ID, Code: "P101"})
	require.True(t, fault.IsKind(err, fault.KindConflict), "got %v", err)

	// The same code in a different apartment is fine.
	_, err = svc.CreateRoom(ctx, types.Room{ApartmentID: b.ID, Code: "P101"})
	require.NoError(t, err)
}

func TestCreateRoom_StartsAvailable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	apt, err := svc.CreateApartment(ctx, "A", "")
	require.NoError(t, err)
	room, err := svc.CreateRoom(ctx, types.Room{ApartmentID: apt.ID, Code: "P201", Floor: 2, Area: 20})
	require.NoError(t, err)
	require.Equal(t, types.RoomAvailable, room.Status)

	rooms, err := svc.ListRooms(ctx, apt.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}

func TestCreateRoom_UnknownApartment(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateRoom(context.Background(), types.Room{ApartmentID: "missing", Code: "P101"})
	require.True(t, fault.IsKind(err, fault.KindNotFound), "got %v", err)
}
