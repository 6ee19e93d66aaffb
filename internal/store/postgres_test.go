package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigforge/rigforge/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetHardware_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM hardware WHERE id = \$1`).
		WithArgs("hw-missing").
		WillReturnError(pgx.ErrNoRows)

	item, err := s.GetHardware(context.Background(), "hw-missing")
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetHardware_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "category", "brand", "model", "price", "previous_price", "status",
		"sort_order", "specs", "image", "is_discount", "is_recommended", "is_new",
		"created_at", "updated_at",
	}).AddRow(
		"hw-1", model.CategoryGPU, "NVIDIA", "RTX 4070", 4599.0, (*float64)(nil),
		model.HardwareActive, 10, []byte(`{"vram":"12GB"}`), "", false, true, false,
		now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM hardware WHERE id = \$1`).
		WithArgs("hw-1").
		WillReturnRows(rows)

	item, err := s.GetHardware(context.Background(), "hw-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, model.CategoryGPU, item.Category)
	assert.Equal(t, 4599.0, item.Price)
	assert.Equal(t, "12GB", item.Specs["vram"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateHardware_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE hardware SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), "hw-gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateHardware(context.Background(), &model.HardwareItem{
		ID:       "hw-gone",
		Category: model.CategoryCPU,
		Model:    "i5-14600K",
		Price:    1999,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertHardware(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO hardware .+ ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertHardware(context.Background(), &model.HardwareItem{
		ID:       "hw-2",
		Category: model.CategoryRAM,
		Brand:    "Kingston",
		Model:    "Fury 32GB DDR5",
		Price:    699,
		Status:   model.HardwareActive,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListReferenceBuilds_FiltersByWindow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "user_name", "serial_number", "title", "description",
		"items", "total_price", "status", "tags", "is_recommended", "views", "likes",
		"created_at", "updated_at",
	}).AddRow(
		"b-1", "u-1", "alice", "RF-0001", "6000 gaming rig", "",
		[]byte(`{"cpu":"hw-1","gpu":"hw-2"}`), 5980.0, model.BuildPublished,
		[]byte(`["gaming"]`), true, 120, 45, now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM builds\s+WHERE status = 'published' AND is_recommended = true`).
		WithArgs(4800.0, 7200.0, 3).
		WillReturnRows(rows)

	builds, err := s.ListReferenceBuilds(context.Background(), 4800, 7200, 3)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "hw-1", builds[0].Items[model.CategoryCPU])
	assert.Equal(t, 45, builds[0].Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConsumeInvitation_Exhausted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE invitation_codes SET used_count = used_count \+ 1`).
		WithArgs("ABC123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ConsumeInvitation(context.Background(), "ABC123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not usable")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConsumeInvitation_OK(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE invitation_codes SET used_count = used_count \+ 1`).
		WithArgs("XYZ789").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.ConsumeInvitation(context.Background(), "XYZ789")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSetting_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WithArgs("ai").
		WillReturnError(pgx.ErrNoRows)

	value, err := s.GetSetting(context.Background(), "ai")
	require.NoError(t, err)
	assert.Nil(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetSetting_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO settings .+ ON CONFLICT`).
		WithArgs("ai", []byte(`{"enabled":true}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetSetting(context.Background(), "ai", []byte(`{"enabled":true}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BumpDailyStat_RejectsUnknownField(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.BumpDailyStat(context.Background(), "2026-01-15", StatField("drop table"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stat field")
}

func TestPostgresStore_BumpDailyStat_OK(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO daily_stats \(date, ai_generations\)`).
		WithArgs("2026-01-15").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.BumpDailyStat(context.Background(), "2026-01-15", StatAIGenerations)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkOrderPaid_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE orders SET status = 'paid'`).
		WithArgs(pgxmock.AnyArg(), "ord-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkOrderPaid(context.Background(), "ord-1", time.Now().UTC())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSessionRead_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE chat_messages SET is_read = true`).
		WithArgs("sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE chat_sessions SET unread_count = 0`).
		WithArgs("sess-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.MarkSessionRead(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
