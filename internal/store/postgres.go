package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fxquant/fx-engine/internal/model"
	"github.com/fxquant/fx-engine/internal/result"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// the per-pair UPL breakdown is stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertEquityPoint(ctx context.Context, runID string, r result.EquityResult) error {
	upl, err := json.Marshal(uplStrings(r.UPL))
	if err != nil {
		return fmt.Errorf("marshal upl: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO equity_points (run_id, ts, equity, balance, upl)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::JSONB)`,
		runID, r.Time, r.Equity.String(), r.Balance.String(), string(upl),
	)
	return err
}

func (s *PostgresStore) InsertExecution(ctx context.Context, runID string, r result.ExecutionResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO executions (run_id, ts, pair, units, price)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC)`,
		runID, r.Time, string(r.Pair), r.Units.String(), r.Price.String(),
	)
	return err
}

func (s *PostgresStore) EquityCurve(ctx context.Context, runID string) ([]result.EquityResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, equity::TEXT, balance::TEXT, upl::TEXT
		 FROM equity_points WHERE run_id = $1 ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var curve []result.EquityResult
	for rows.Next() {
		var r result.EquityResult
		var equityS, balanceS, uplS string
		if err := rows.Scan(&r.Time, &equityS, &balanceS, &uplS); err != nil {
			return nil, err
		}
		r.Equity, _ = decimal.NewFromString(equityS)
		r.Balance, _ = decimal.NewFromString(balanceS)
		r.UPL, err = uplDecimals(uplS)
		if err != nil {
			return nil, fmt.Errorf("equity point %s: %w", r.Time, err)
		}
		curve = append(curve, r)
	}
	return curve, rows.Err()
}

func (s *PostgresStore) Executions(ctx context.Context, runID string) ([]result.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, pair, units::TEXT, price::TEXT
		 FROM executions WHERE run_id = $1 ORDER BY ts`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []result.ExecutionResult
	for rows.Next() {
		var r result.ExecutionResult
		var pairS, unitsS, priceS string
		if err := rows.Scan(&r.Time, &pairS, &unitsS, &priceS); err != nil {
			return nil, err
		}
		r.Pair = model.Pair(pairS)
		r.Units, _ = decimal.NewFromString(unitsS)
		r.Price, _ = decimal.NewFromString(priceS)
		execs = append(execs, r)
	}
	return execs, rows.Err()
}

func uplStrings(upl map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(upl))
	for k, v := range upl {
		out[k] = v.String()
	}
	return out
}

func uplDecimals(raw string) (map[string]decimal.Decimal, error) {
	var strs map[string]string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(strs))
	for k, v := range strs {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("upl %s: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}
