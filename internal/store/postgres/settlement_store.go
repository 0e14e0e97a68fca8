package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/donatemarket/internal/domain"
	"github.com/alanyoungcy/donatemarket/internal/market"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
// Amounts travel as text and are cast to NUMERIC so no precision is lost.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Save upserts the settlement and replaces its payout rows in one
// transaction.
func (s *SettlementStore) Save(ctx context.Context, st domain.Settlement) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement %s: %w", st.MarketID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO settlements (market_id, result, losing_pool, winning_pool, settled_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			result       = EXCLUDED.result,
			losing_pool  = EXCLUDED.losing_pool,
			winning_pool = EXCLUDED.winning_pool,
			settled_at   = EXCLUDED.settled_at,
			updated_at   = NOW()`
	if _, err := tx.Exec(ctx, upsert,
		st.MarketID, string(st.Result),
		st.LosingPool.String(), st.WinningPool.String(),
		st.SettledAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert settlement %s: %w", st.MarketID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM settlement_payouts WHERE market_id = $1`, st.MarketID); err != nil {
		return fmt.Errorf("postgres: clear payouts %s: %w", st.MarketID, err)
	}

	if len(st.Payouts) > 0 {
		batch := &pgx.Batch{}
		const insert = `INSERT INTO settlement_payouts (market_id, participant, amount) VALUES ($1, $2, $3::numeric)`
		for participant, amt := range st.Payouts {
			batch.Queue(insert, st.MarketID, participant, amt.String())
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert payout batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close payout batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settlement %s: %w", st.MarketID, err)
	}
	return nil
}

const settlementCols = `market_id, result, losing_pool::text, winning_pool::text, settled_at`

func scanSettlement(row pgx.Row) (domain.Settlement, error) {
	var st domain.Settlement
	var result, losing, winning string
	if err := row.Scan(&st.MarketID, &result, &losing, &winning, &st.SettledAt); err != nil {
		return domain.Settlement{}, err
	}
	st.Result = domain.Side(result)

	var err error
	if st.LosingPool, err = decimal.NewFromString(losing); err != nil {
		return domain.Settlement{}, fmt.Errorf("parse losing_pool: %w", err)
	}
	if st.WinningPool, err = decimal.NewFromString(winning); err != nil {
		return domain.Settlement{}, fmt.Errorf("parse winning_pool: %w", err)
	}
	st.Payouts = domain.Payouts{}
	return st, nil
}

// GetByMarket returns the stored settlement of a market, or domain.ErrNotFound.
func (s *SettlementStore) GetByMarket(ctx context.Context, marketID string) (domain.Settlement, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+settlementCols+` FROM settlements WHERE market_id = $1`, marketID)
	st, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settlement{}, domain.ErrNotFound
		}
		return domain.Settlement{}, fmt.Errorf("postgres: get settlement %s: %w", marketID, err)
	}

	byMarket := map[string]*domain.Settlement{st.MarketID: &st}
	if err := s.loadPayouts(ctx, byMarket); err != nil {
		return domain.Settlement{}, err
	}
	return st, nil
}

// ListRecent returns the most recently settled markets, newest first.
func (s *SettlementStore) ListRecent(ctx context.Context, limit int) ([]domain.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+settlementCols+` FROM settlements ORDER BY settled_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	var out []domain.Settlement
	for rows.Next() {
		st, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settlements rows: %w", err)
	}

	byMarket := make(map[string]*domain.Settlement, len(out))
	for i := range out {
		byMarket[out[i].MarketID] = &out[i]
	}
	if err := s.loadPayouts(ctx, byMarket); err != nil {
		return nil, err
	}
	return out, nil
}

// loadPayouts fills Payouts and Transfers for every settlement in byMarket.
func (s *SettlementStore) loadPayouts(ctx context.Context, byMarket map[string]*domain.Settlement) error {
	if len(byMarket) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byMarket))
	for id := range byMarket {
		ids = append(ids, id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT market_id, participant, amount::text FROM settlement_payouts WHERE market_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load payouts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var marketID, participant, amount string
		if err := rows.Scan(&marketID, &participant, &amount); err != nil {
			return fmt.Errorf("postgres: scan payout: %w", err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("postgres: parse payout %s/%s: %w", marketID, participant, err)
		}
		if st, ok := byMarket[marketID]; ok {
			st.Payouts[participant] = amt
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: load payouts rows: %w", err)
	}

	for _, st := range byMarket {
		st.Transfers = market.Transfers(st.Payouts)
	}
	return nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
