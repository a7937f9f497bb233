package collector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mailman-exporter/internal/observability/tracing"
)

// DefaultConnectTimeout bounds the per-scrape connection checkout.
const DefaultConnectTimeout = 10 * time.Second

const (
	upName       = "mailman_exporter_up"
	upHelp       = "Whether the Mailman exporter scrape is working"
	durationName = "mailman_scrape_duration_seconds"
	durationHelp = "Time taken to scrape Mailman DB"
)

const listTimestampsSQL = `
SELECT list_id,
       extract(epoch FROM last_post_at)::float8,
       extract(epoch FROM created_at)::float8
FROM mailinglist`

// Scraper runs the full query battery against the Mailman database. Each call
// to Scrape is an independent collection cycle on its own connection and
// read-only transaction; no state is carried between cycles, so a Scraper is
// safe for concurrent use.
type Scraper struct {
	db             *sql.DB
	catalog        []QuerySpec
	logger         *slog.Logger
	connectTimeout time.Duration
}

// NewScraper creates a scraper over the given connection pool.
// A non-positive connectTimeout falls back to DefaultConnectTimeout.
func NewScraper(db *sql.DB, logger *slog.Logger, connectTimeout time.Duration) *Scraper {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		db:             db,
		catalog:        Catalog(),
		logger:         logger,
		connectTimeout: connectTimeout,
	}
}

// Scrape runs every catalog entry in order inside one read-only transaction,
// then appends the per-list timestamp families, the liveness gauge, and the
// scrape duration. Any failure aborts the whole cycle: the caller gets the
// error and no families, never a partial set.
func (s *Scraper) Scrape(ctx context.Context) ([]Family, error) {
	logger := s.logger.With(slog.String("scrape_id", uuid.NewString()))
	ctx, span := tracing.GetTracer().Start(ctx, "scrape")
	defer span.End()

	logger.Debug("starting scrape")
	start := time.Now()

	connCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	conn, err := s.db.Conn(connCtx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	// ReadOnly makes the driver open the transaction with BEGIN READ ONLY,
	// so any write attempted through it errors out at the server.
	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	families := make([]Family, 0, len(s.catalog)+4)
	for _, spec := range s.catalog {
		logger.Debug("collecting", slog.String("metric", spec.Name))
		_, qspan := tracing.GetTracer().Start(ctx, spec.Name)
		fam, err := mapQuery(ctx, tx, spec)
		qspan.End()
		if err != nil {
			return nil, err
		}
		families = append(families, fam)
	}

	lastPost, created, err := listTimestamps(ctx, tx)
	if err != nil {
		return nil, err
	}
	families = append(families, lastPost, created)

	elapsed := time.Since(start)
	logger.Debug("scrape completed", slog.Duration("elapsed", elapsed))

	families = append(families, upFamily(1), durationFamily(elapsed.Seconds()))
	return families, nil
}

// listTimestamps builds the per-list last-post and creation timestamp
// families from a single mailinglist query. A list that has never seen a
// post reports 0.
func listTimestamps(ctx context.Context, q querier) (Family, Family, error) {
	lastPost := Family{
		Name:   "mailman_list_last_post_timestamp",
		Help:   "Unix timestamp of last post to list (0 if never posted)",
		Labels: []string{"list_id"},
	}
	created := Family{
		Name:   "mailman_list_created_timestamp",
		Help:   "Unix timestamp of list creation",
		Labels: []string{"list_id"},
	}

	rows, err := q.QueryContext(ctx, listTimestampsSQL)
	if err != nil {
		return Family{}, Family{}, fmt.Errorf("list timestamps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var listID string
		var postedAt, createdAt sql.NullFloat64
		if err := rows.Scan(&listID, &postedAt, &createdAt); err != nil {
			return Family{}, Family{}, fmt.Errorf("list timestamps: %w", err)
		}
		lastPost.Samples = append(lastPost.Samples, Sample{Labels: []string{listID}, Value: postedAt.Float64})
		created.Samples = append(created.Samples, Sample{Labels: []string{listID}, Value: createdAt.Float64})
	}
	if err := rows.Err(); err != nil {
		return Family{}, Family{}, fmt.Errorf("list timestamps: %w", err)
	}
	return lastPost, created, nil
}

func upFamily(v float64) Family {
	return Family{Name: upName, Help: upHelp, Samples: []Sample{{Value: v}}}
}

func durationFamily(seconds float64) Family {
	return Family{Name: durationName, Help: durationHelp, Samples: []Sample{{Value: seconds}}}
}
