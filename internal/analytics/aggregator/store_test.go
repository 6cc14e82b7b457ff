package aggregator

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/postgres"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(postgres.FromDB(db))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

func TestSaveSnapshot(t *testing.T) {
	s, mock := newMockStore(t)
	stats := analytics.Stats{TotalSearches: 4}
	data, err := json.Marshal(stats)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO recipe_search_snapshots (data, captured_at) VALUES ($1, $2)`)).
		WithArgs(data, s.now().UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.SaveSnapshot(context.Background(), stats))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestSnapshotEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT data FROM recipe_search_snapshots`).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	got, err := s.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSnapshotsSkipsCorruptRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT data FROM recipe_search_snapshots`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"total_searches":9}`)).
			AddRow([]byte(`{broken`)).
			AddRow([]byte(`{"total_searches":5}`)))

	snaps, err := s.ListSnapshots(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(9), snaps[0].TotalSearches)
	assert.Equal(t, int64(5), snaps[1].TotalSearches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS recipe_search_snapshots`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunWritesFinalSnapshot(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO recipe_search_snapshots`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx, analytics.NewAggregator(), "@every 1h"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunSavesOnSchedule(t *testing.T) {
	s, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(`INSERT INTO recipe_search_snapshots`).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, analytics.NewAggregator(), "* * * * * *") }()
	time.Sleep(1500 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s, mock := newMockStore(t)
	err := s.Run(context.Background(), analytics.NewAggregator(), "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot schedule")
	assert.NoError(t, mock.ExpectationsWereMet())
}

var _ analytics.SnapshotLister = (*Store)(nil)
