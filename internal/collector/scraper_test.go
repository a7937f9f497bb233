package collector_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailman-exporter/internal/collector"
)

const listTimestampsPattern = `extract\(epoch FROM last_post_at\)`

// expectEmptyBattery queues expectations for a scrape of an empty database:
// unlabeled queries return a single zero row, labeled ones return no rows.
func expectEmptyBattery(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	for _, spec := range collector.Catalog() {
		q := mock.ExpectQuery(regexp.QuoteMeta(spec.SQL))
		if len(spec.Labels) == 0 {
			q.WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		} else {
			cols := append(append([]string{}, spec.Labels...), "count")
			q.WillReturnRows(sqlmock.NewRows(cols))
		}
	}
	mock.ExpectQuery(listTimestampsPattern).
		WillReturnRows(sqlmock.NewRows([]string{"list_id", "last_post", "created"}))
	mock.ExpectRollback()
}

func TestScrape_EmptyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectEmptyBattery(mock)

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	// 18 catalog families, 2 timestamp families, up, duration.
	require.Len(t, families, 22)

	byName := map[string]collector.Family{}
	for _, fam := range families {
		byName[fam.Name] = fam
	}

	up := byName["mailman_exporter_up"]
	require.Len(t, up.Samples, 1)
	assert.Equal(t, 1.0, up.Samples[0].Value)

	duration := byName["mailman_scrape_duration_seconds"]
	require.Len(t, duration.Samples, 1)
	assert.GreaterOrEqual(t, duration.Samples[0].Value, 0.0)

	assert.Equal(t, 0.0, byName["mailman_domains_total"].Samples[0].Value)
	assert.Empty(t, byName["mailman_lists_total"].Samples)
	assert.Empty(t, byName["mailman_list_last_post_timestamp"].Samples)
}

func TestScrape_FamilyOrderIsStable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectEmptyBattery(mock)

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(context.Background())
	require.NoError(t, err)

	var names []string
	for _, fam := range families {
		names = append(names, fam.Name)
	}
	catalog := collector.Catalog()
	for i, spec := range catalog {
		assert.Equal(t, spec.Name, names[i])
	}
	tail := names[len(catalog):]
	want := []string{
		"mailman_list_last_post_timestamp",
		"mailman_list_created_timestamp",
		"mailman_exporter_up",
		"mailman_scrape_duration_seconds",
	}
	if diff := cmp.Diff(want, tail); diff != "" {
		t.Fatalf("tail mismatch (-want +got):\n%s", diff)
	}
}

func TestScrape_ListTimestamps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	for _, spec := range collector.Catalog() {
		q := mock.ExpectQuery(regexp.QuoteMeta(spec.SQL))
		if len(spec.Labels) == 0 {
			q.WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		} else {
			cols := append(append([]string{}, spec.Labels...), "count")
			q.WillReturnRows(sqlmock.NewRows(cols))
		}
	}
	// quiet.example.com has never seen a post: last_post_at is NULL.
	mock.ExpectQuery(listTimestampsPattern).
		WillReturnRows(sqlmock.NewRows([]string{"list_id", "last_post", "created"}).
			AddRow("busy.example.com", float64(1700000000), float64(1600000000)).
			AddRow("quiet.example.com", nil, float64(1650000000)))
	mock.ExpectRollback()

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(context.Background())
	require.NoError(t, err)

	byName := map[string]collector.Family{}
	for _, fam := range families {
		byName[fam.Name] = fam
	}

	wantLastPost := []collector.Sample{
		{Labels: []string{"busy.example.com"}, Value: 1700000000},
		{Labels: []string{"quiet.example.com"}, Value: 0},
	}
	if diff := cmp.Diff(wantLastPost, byName["mailman_list_last_post_timestamp"].Samples); diff != "" {
		t.Fatalf("last_post mismatch (-want +got):\n%s", diff)
	}

	wantCreated := []collector.Sample{
		{Labels: []string{"busy.example.com"}, Value: 1600000000},
		{Labels: []string{"quiet.example.com"}, Value: 1650000000},
	}
	if diff := cmp.Diff(wantCreated, byName["mailman_list_created_timestamp"].Samples); diff != "" {
		t.Fatalf("created mismatch (-want +got):\n%s", diff)
	}
}

func TestScrape_BeginFailureAbortsScrape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin().WillReturnError(assert.AnError)

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, families, "failed scrape must not leak partial families")
}

func TestScrape_QueryFailureAbortsScrape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	catalog := collector.Catalog()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(catalog[0].SQL)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta(catalog[1].SQL)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, families)
}

func TestScrape_ContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_ = mock

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := collector.NewScraper(db, slog.Default(), 0)
	families, err := s.Scrape(ctx)
	assert.Error(t, err)
	assert.Nil(t, families)
}

// txOptionsConn is a driver stub recording the options passed to BeginTx.
// It cannot serve queries, so a scrape over it ends right after begin.
type txOptionsConn struct {
	opts *driver.TxOptions
}

func (c *txOptionsConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}
func (c *txOptionsConn) Close() error { return nil }
func (c *txOptionsConn) Begin() (driver.Tx, error) {
	return nil, errors.New("BeginTx expected")
}

func (c *txOptionsConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.opts = &opts
	return noopTx{}, nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

type txOptionsConnector struct{ conn *txOptionsConn }

func (c txOptionsConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c txOptionsConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return nil, errors.New("use the connector") }

func TestScrape_TransactionIsReadOnly(t *testing.T) {
	conn := &txOptionsConn{}
	db := sql.OpenDB(txOptionsConnector{conn: conn})
	defer func() { _ = db.Close() }()

	s := collector.NewScraper(db, slog.Default(), time.Second)
	_, err := s.Scrape(context.Background())
	require.Error(t, err)

	require.NotNil(t, conn.opts, "BeginTx never reached the driver")
	assert.True(t, conn.opts.ReadOnly, "scrape transaction must be opened read-only")
}
