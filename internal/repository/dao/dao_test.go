package dao

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB spins up a throwaway postgres container. Skipped under
// -short so unit runs stay docker-free.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping dockertest-backed test in short mode")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	require.NoError(t, pool.Client.Ping())

	resource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_DB=koltime_test",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pool.Purge(resource))
	})

	var db *gorm.DB
	err = pool.Retry(func() error {
		dsn := fmt.Sprintf("host=localhost port=%s user=postgres password=secret dbname=koltime_test sslmode=disable",
			resource.GetPort("5432/tcp"))

		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if openErr != nil {
			return openErr
		}

		sqlDB, openErr := db.DB()
		if openErr != nil {
			return openErr
		}

		return sqlDB.Ping()
	})
	require.NoError(t, err)
	require.NoError(t, InitTables(db))

	return db
}

func TestBookingDAO(t *testing.T) {
	db := setupTestDB(t)
	d := NewBookingDAO(db)
	ctx := context.Background()

	from := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	created, err := d.Insert(ctx, Booking{
		Buyer:        "0xbuyer",
		KOL:          "0xkol",
		PricePerUnit: 100,
		UnitCount:    10,
		TotalAmount:  1000,
		FromTime:     from,
		ToTime:       from.Add(5 * time.Hour),
		Status:       "Pending",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := d.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xbuyer", found.Buyer)
	assert.Equal(t, int64(1000), found.TotalAmount)

	found.Status = "Accepted"
	_, err = d.Update(ctx, found)
	require.NoError(t, err)

	open, err := d.FindByStatuses(ctx, []string{"Pending", "Accepted"})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Accepted", open[0].Status)

	byParty, err := d.FindByParty(ctx, "0xkol")
	require.NoError(t, err)
	assert.Len(t, byParty, 1)

	_, err = d.FindByID(ctx, 9999)
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestTicketDAO_OnePerBooking(t *testing.T) {
	db := setupTestDB(t)
	d := NewTicketDAO(db)
	ctx := context.Background()

	from := time.Now().UTC()
	ticket := Ticket{
		BookingID: 1,
		Owner:     "0xbuyer",
		Buyer:     "0xbuyer",
		KOL:       "0xkol",
		FromTime:  from,
		ToTime:    from.Add(time.Hour),
		Amount:    1000,
		Status:    "Pending",
	}

	created, err := d.Insert(ctx, ticket)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	// The unique index on booking_id makes a second mint impossible.
	_, err = d.Insert(ctx, ticket)
	require.ErrorIs(t, err, ErrTicketExists)

	byBooking, err := d.FindByBookingID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byBooking.ID)
}

func TestReputationDAO_ProcessedTransactions(t *testing.T) {
	db := setupTestDB(t)
	d := NewReputationDAO(db)
	ctx := context.Background()

	require.NoError(t, d.InsertProcessedTransaction(ctx, "tx-1"))

	err := d.InsertProcessedTransaction(ctx, "tx-1")
	require.ErrorIs(t, err, ErrTxProcessed)

	require.NoError(t, d.InsertProcessedTransaction(ctx, "tx-2"))
}

func TestReputationDAO_Counterparties(t *testing.T) {
	db := setupTestDB(t)
	d := NewReputationDAO(db)
	ctx := context.Background()

	fresh, err := d.InsertCounterparty(ctx, "0xalice", "0xbob")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = d.InsertCounterparty(ctx, "0xalice", "0xbob")
	require.NoError(t, err)
	assert.False(t, fresh)

	// Same counterparty for a different user is a fresh pair.
	fresh, err = d.InsertCounterparty(ctx, "0xcarol", "0xbob")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestReputationDAO_IngestTransaction(t *testing.T) {
	db := setupTestDB(t)
	d := NewReputationDAO(db)
	ctx := context.Background()
	now := time.Now().UTC()

	activity, err := d.IngestTransaction(ctx, "0xalice", 100, "0xbob", "tx-1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), activity.Transactions)
	assert.Equal(t, int64(100), activity.VolumeTraded)
	assert.Equal(t, int64(1), activity.UniqueCounterparties)

	// Replay rolls back inside the transaction: no counter moves.
	_, err = d.IngestTransaction(ctx, "0xalice", 999, "0xcarol", "tx-1", now)
	require.ErrorIs(t, err, ErrTxProcessed)

	found, err := d.FindActivityByAddress(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Transactions)
	assert.Equal(t, int64(100), found.VolumeTraded)
	assert.Equal(t, int64(1), found.UniqueCounterparties)

	// A repeat counterparty on a fresh id bumps the tx counter only.
	second, err := d.IngestTransaction(ctx, "0xalice", 50, "0xbob", "tx-2", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Transactions)
	assert.Equal(t, int64(1), second.UniqueCounterparties)
}

func TestReputationDAO_UpsertRecord(t *testing.T) {
	db := setupTestDB(t)
	d := NewReputationDAO(db)
	ctx := context.Background()

	first, err := d.UpsertRecord(ctx, ReputationRecord{
		Address:    "0xalice",
		TotalScore: 100,
		Tier:       "Bronze",
	})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	_, err = d.UpsertRecord(ctx, ReputationRecord{
		Address:    "0xalice",
		TotalScore: 1200,
		Tier:       "Silver",
		IsKOL:      true,
	})
	require.NoError(t, err)

	found, err := d.FindRecordByAddress(ctx, "0xalice")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), found.TotalScore)
	assert.Equal(t, "Silver", found.Tier)
	assert.True(t, found.IsKOL)

	var count int64
	require.NoError(t, db.Model(&ReputationRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
