package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	b := &Booking{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		ProviderID:       uuid.New(),
		TreatmentPriceID: uuid.New(),
		AppointmentDate:  time.Now().Add(48 * time.Hour),
		Status:           StatusPending,
	}

	now := time.Now()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(b.ID, b.UserID, b.ProviderID, b.TreatmentPriceID, b.AppointmentDate, b.SpecialRequests, b.Status).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, store.Insert(context.Background(), b))
	assert.Equal(t, now, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, user_id, provider_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "provider_id", "treatment_price_id", "appointment_date",
			"special_requests", "status", "created_at", "updated_at",
		}))

	_, err = store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateStatusCAS(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("UPDATE bookings").
		WithArgs(id, StatusPending, StatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "provider_id", "treatment_price_id", "appointment_date",
			"special_requests", "status", "created_at", "updated_at",
		}).AddRow(id, uuid.New(), uuid.New(), uuid.New(), now.Add(48*time.Hour), "", StatusConfirmed, now, now))

	b, applied, err := store.UpdateStatusCAS(context.Background(), id, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateStatusCASLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	id := uuid.New()

	// No row matches id+status: someone already moved it.
	mock.ExpectQuery("UPDATE bookings").
		WithArgs(id, StatusPending, StatusConfirmed).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "provider_id", "treatment_price_id", "appointment_date",
			"special_requests", "status", "created_at", "updated_at",
		}))

	b, applied, err := store.UpdateStatusCAS(context.Background(), id, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateSpecialRequestsRequiresPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	id := uuid.New()

	mock.ExpectQuery("UPDATE bookings").
		WithArgs(id, "no shellfish").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "provider_id", "treatment_price_id", "appointment_date",
			"special_requests", "status", "created_at", "updated_at",
		}))

	_, err = store.UpdateSpecialRequests(context.Background(), id, "no shellfish")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newStoreWithDB(mock)
	userID := uuid.New()
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "user_id", "provider_id", "treatment_price_id", "appointment_date",
		"special_requests", "status", "created_at", "updated_at",
		"full_name", "name", "treatment_name", "amount_cents", "currency",
	}).AddRow(
		uuid.New(), userID, uuid.New(), uuid.New(), now.Add(48*time.Hour),
		"", StatusPending, now, now,
		"Ada Lovelace", "Istanbul Dental Clinic", "Dental Implant", int64(125000), "USD",
	)
	mock.ExpectQuery("SELECT b.id, b.user_id").
		WithArgs(&userID, (*uuid.UUID)(nil), "", (*time.Time)(nil), "").
		WillReturnRows(rows)

	out, err := store.List(context.Background(), ListFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Istanbul Dental Clinic", out[0].ProviderName)
	assert.Equal(t, int64(125000), out[0].AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
