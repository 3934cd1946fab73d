package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/model"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open pool. Close closes the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const marketColumns = `token_id, market_id, condition_id, question, slug, event_slug, description,
	yes_price, no_price, volume_24h, volume_total, liquidity, tags, outcomes, clob_token_ids,
	active, closed, end_ts, updated_at`

const upsertMarketSQL = `
	INSERT INTO markets (` + marketColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (token_id) DO UPDATE SET
		market_id = EXCLUDED.market_id,
		condition_id = EXCLUDED.condition_id,
		question = EXCLUDED.question,
		slug = EXCLUDED.slug,
		event_slug = EXCLUDED.event_slug,
		description = EXCLUDED.description,
		yes_price = EXCLUDED.yes_price,
		no_price = EXCLUDED.no_price,
		volume_24h = EXCLUDED.volume_24h,
		volume_total = EXCLUDED.volume_total,
		liquidity = EXCLUDED.liquidity,
		tags = EXCLUDED.tags,
		outcomes = EXCLUDED.outcomes,
		clob_token_ids = EXCLUDED.clob_token_ids,
		active = EXCLUDED.active,
		closed = EXCLUDED.closed,
		end_ts = EXCLUDED.end_ts,
		updated_at = EXCLUDED.updated_at
	WHERE markets.updated_at <= EXCLUDED.updated_at`

const upsertPointSQL = `
	INSERT INTO price_history (token_id, bucket_interval, bucket_ts, price)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (token_id, bucket_interval, bucket_ts) DO UPDATE SET price = EXCLUDED.price
	WHERE price_history.price <> EXCLUDED.price`

// UpsertMarkets writes all markets in one transaction using pgx.Batch.
func (s *Postgres) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range dedupeMarkets(markets) {
		batch.Queue(upsertMarketSQL,
			m.TokenID, m.MarketID, m.ConditionID, m.Question, m.Slug, m.EventSlug, m.Description,
			m.YesPrice, m.NoPrice, m.Volume24h, m.VolumeTotal, m.Liquidity,
			nonNil(m.Tags), nonNil(m.Outcomes), nonNil(m.ClobTokenIDs),
			m.Active, m.Closed, m.EndTS, m.UpdatedAt,
		)
	}

	_, err := s.sendBatchTx(ctx, batch)
	if err != nil {
		return fmt.Errorf("upsert markets: %w", err)
	}
	return nil
}

func (s *Postgres) GetMarket(ctx context.Context, tokenID string) (model.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE token_id = $1`, tokenID)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Market{}, ErrNotFound
	}
	if err != nil {
		return model.Market{}, fmt.Errorf("get market %s: %w", tokenID, err)
	}
	return m, nil
}

func (s *Postgres) ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT ` + marketColumns + ` FROM markets WHERE TRUE`)

	if filter.ActiveOnly {
		sb.WriteString(` AND active AND NOT closed`)
	}
	if filter.MinVolume > 0 {
		args = append(args, filter.MinVolume)
		fmt.Fprintf(&sb, ` AND (CASE WHEN volume_24h > 0 THEN volume_24h ELSE volume_total END) >= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY volume_24h DESC, token_id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertPricePoints writes all points in one transaction using pgx.Batch.
func (s *Postgres) UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range dedupePoints(points) {
		batch.Queue(upsertPointSQL, p.TokenID, string(p.Interval), p.BucketTS, p.Price)
	}

	changed, err := s.sendBatchTx(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("upsert price points: %w", err)
	}
	return changed, nil
}

func (s *Postgres) QueryPricePoints(ctx context.Context, tokenID string, interval model.Interval, r model.TimeRange, limit int) ([]model.PricePoint, error) {
	var sb strings.Builder
	args := []any{tokenID, string(interval)}
	sb.WriteString(`SELECT bucket_ts, price FROM price_history WHERE token_id = $1 AND bucket_interval = $2`)

	if r.Start != 0 {
		args = append(args, r.Start)
		fmt.Fprintf(&sb, ` AND bucket_ts >= $%d`, len(args))
	}
	if r.End != 0 {
		args = append(args, r.End)
		fmt.Fprintf(&sb, ` AND bucket_ts <= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY bucket_ts ASC`)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query price points: %w", err)
	}
	defer rows.Close()

	out := make([]model.PricePoint, 0)
	for rows.Next() {
		p := model.PricePoint{TokenID: tokenID, Interval: interval}
		if err := rows.Scan(&p.BucketTS, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) MaxTimestamp(ctx context.Context, tokenID string, interval model.Interval) (int64, bool, error) {
	var ts *int64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(bucket_ts) FROM price_history WHERE token_id = $1 AND bucket_interval = $2`,
		tokenID, string(interval)).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("max timestamp: %w", err)
	}
	if ts == nil {
		return 0, false, nil
	}
	return *ts, true, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

// sendBatchTx runs batch inside a transaction and returns total rows affected.
func (s *Postgres) sendBatchTx(ctx context.Context, batch *pgx.Batch) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	var affected int
	for i := 0; i < batch.Len(); i++ {
		ct, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, err
		}
		affected += int(ct.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return affected, nil
}

func scanMarket(row pgx.Row) (model.Market, error) {
	var m model.Market
	err := row.Scan(
		&m.TokenID, &m.MarketID, &m.ConditionID, &m.Question, &m.Slug, &m.EventSlug, &m.Description,
		&m.YesPrice, &m.NoPrice, &m.Volume24h, &m.VolumeTotal, &m.Liquidity,
		&m.Tags, &m.Outcomes, &m.ClobTokenIDs,
		&m.Active, &m.Closed, &m.EndTS, &m.UpdatedAt,
	)
	return m, err
}
