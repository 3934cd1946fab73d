package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/polymarket-data/internal/model"
)

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite wraps an open database. Close closes it.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

const sqliteUpsertMarketSQL = `
	INSERT INTO markets (` + marketColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (token_id) DO UPDATE SET
		market_id = excluded.market_id,
		condition_id = excluded.condition_id,
		question = excluded.question,
		slug = excluded.slug,
		event_slug = excluded.event_slug,
		description = excluded.description,
		yes_price = excluded.yes_price,
		no_price = excluded.no_price,
		volume_24h = excluded.volume_24h,
		volume_total = excluded.volume_total,
		liquidity = excluded.liquidity,
		tags = excluded.tags,
		outcomes = excluded.outcomes,
		clob_token_ids = excluded.clob_token_ids,
		active = excluded.active,
		closed = excluded.closed,
		end_ts = excluded.end_ts,
		updated_at = excluded.updated_at
	WHERE markets.updated_at <= excluded.updated_at`

const sqliteUpsertPointSQL = `
	INSERT INTO price_history (token_id, bucket_interval, bucket_ts, price)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (token_id, bucket_interval, bucket_ts) DO UPDATE SET price = excluded.price
	WHERE price_history.price <> excluded.price`

func (s *SQLite) UpsertMarkets(ctx context.Context, markets []model.Market) error {
	if len(markets) == 0 {
		return nil
	}

	_, err := s.inTx(ctx, sqliteUpsertMarketSQL, func(stmt *sql.Stmt) (int, error) {
		var affected int
		for _, m := range dedupeMarkets(markets) {
			tags, outcomes, tokens, err := encodeLists(m)
			if err != nil {
				return 0, err
			}
			res, err := stmt.ExecContext(ctx,
				m.TokenID, m.MarketID, m.ConditionID, m.Question, m.Slug, m.EventSlug, m.Description,
				m.YesPrice, m.NoPrice, m.Volume24h, m.VolumeTotal, m.Liquidity,
				tags, outcomes, tokens,
				m.Active, m.Closed, m.EndTS, m.UpdatedAt,
			)
			if err != nil {
				return 0, err
			}
			n, _ := res.RowsAffected()
			affected += int(n)
		}
		return affected, nil
	})
	if err != nil {
		return fmt.Errorf("upsert markets: %w", err)
	}
	return nil
}

func (s *SQLite) GetMarket(ctx context.Context, tokenID string) (model.Market, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM markets WHERE token_id = ?`, tokenID)
	m, err := scanSQLiteMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Market{}, ErrNotFound
	}
	if err != nil {
		return model.Market{}, fmt.Errorf("get market %s: %w", tokenID, err)
	}
	return m, nil
}

func (s *SQLite) ListMarkets(ctx context.Context, filter model.MarketFilter) ([]model.Market, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT ` + marketColumns + ` FROM markets WHERE 1 = 1`)

	if filter.ActiveOnly {
		sb.WriteString(` AND active = 1 AND closed = 0`)
	}
	if filter.MinVolume > 0 {
		sb.WriteString(` AND (CASE WHEN volume_24h > 0 THEN volume_24h ELSE volume_total END) >= ?`)
		args = append(args, filter.MinVolume)
	}
	sb.WriteString(` ORDER BY volume_24h DESC, token_id`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []model.Market
	for rows.Next() {
		m, err := scanSQLiteMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	changed, err := s.inTx(ctx, sqliteUpsertPointSQL, func(stmt *sql.Stmt) (int, error) {
		var affected int
		for _, p := range dedupePoints(points) {
			res, err := stmt.ExecContext(ctx, p.TokenID, string(p.Interval), p.BucketTS, p.Price)
			if err != nil {
				return 0, err
			}
			n, _ := res.RowsAffected()
			affected += int(n)
		}
		return affected, nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert price points: %w", err)
	}
	return changed, nil
}

func (s *SQLite) QueryPricePoints(ctx context.Context, tokenID string, interval model.Interval, r model.TimeRange, limit int) ([]model.PricePoint, error) {
	var sb strings.Builder
	args := []any{tokenID, string(interval)}
	sb.WriteString(`SELECT bucket_ts, price FROM price_history WHERE token_id = ? AND bucket_interval = ?`)

	if r.Start != 0 {
		sb.WriteString(` AND bucket_ts >= ?`)
		args = append(args, r.Start)
	}
	if r.End != 0 {
		sb.WriteString(` AND bucket_ts <= ?`)
		args = append(args, r.End)
	}
	sb.WriteString(` ORDER BY bucket_ts ASC`)
	if limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
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

func (s *SQLite) MaxTimestamp(ctx context.Context, tokenID string, interval model.Interval) (int64, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(bucket_ts) FROM price_history WHERE token_id = ? AND bucket_interval = ?`,
		tokenID, string(interval)).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("max timestamp: %w", err)
	}
	return ts.Int64, ts.Valid, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// inTx prepares query inside a transaction, hands the statement to fn and
// commits only if fn succeeds.
func (s *SQLite) inTx(ctx context.Context, query string, fn func(*sql.Stmt) (int, error)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	n, err := fn(stmt)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMarket(row rowScanner) (model.Market, error) {
	var m model.Market
	var tags, outcomes, tokens string
	err := row.Scan(
		&m.TokenID, &m.MarketID, &m.ConditionID, &m.Question, &m.Slug, &m.EventSlug, &m.Description,
		&m.YesPrice, &m.NoPrice, &m.Volume24h, &m.VolumeTotal, &m.Liquidity,
		&tags, &outcomes, &tokens,
		&m.Active, &m.Closed, &m.EndTS, &m.UpdatedAt,
	)
	if err != nil {
		return model.Market{}, err
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{{tags, &m.Tags}, {outcomes, &m.Outcomes}, {tokens, &m.ClobTokenIDs}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return model.Market{}, fmt.Errorf("decode list column: %w", err)
		}
	}
	return m, nil
}

func encodeLists(m model.Market) (tags, outcomes, tokens string, err error) {
	enc := func(s []string) (string, error) {
		b, err := json.Marshal(nonNil(s))
		return string(b), err
	}
	if tags, err = enc(m.Tags); err != nil {
		return
	}
	if outcomes, err = enc(m.Outcomes); err != nil {
		return
	}
	tokens, err = enc(m.ClobTokenIDs)
	return
}
