// Package postgres implements store.DB on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tranvictor/vestingscope/store"
	"github.com/tranvictor/vestingscope/vesting"
)

//go:embed schema.sql
var Schema string

type Postgres struct {
	pool *pgxpool.Pool
}

// New connects to the database in dsn.
func New(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate creates the tables the store needs. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid numeric %q: %w", s, err)
	}
	return d, nil
}

func (p *Postgres) Lookup(ctx context.Context, k store.Key) (vesting.BeneficiaryAggregate, error) {
	k = k.Normalized()
	var (
		id                                     int64
		total, released, remaining, releasable string
		result                                 vesting.BeneficiaryAggregate
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, total::text, released::text, remaining::text, releasable::text, no_vestings, updated_at
		FROM beneficiary_vestings
		WHERE token_id = $1 AND contract_address = $2 AND beneficiary = $3 AND network = $4
	`, k.TokenID, k.Contract, k.Beneficiary, k.Network).Scan(
		&id, &total, &released, &remaining, &releasable, &result.NoVestings, &result.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return vesting.BeneficiaryAggregate{}, store.ErrNotFound
	}
	if err != nil {
		return vesting.BeneficiaryAggregate{}, fmt.Errorf("query beneficiary vesting: %w", err)
	}
	result.Beneficiary = k.Beneficiary
	result.UpdatedAt = result.UpdatedAt.UTC()
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&result.Total, total}, {&result.Released, released}, {&result.Remaining, remaining}, {&result.Releasable, releasable}} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return vesting.BeneficiaryAggregate{}, err
		}
	}

	schedules, err := p.schedules(ctx, id)
	if err != nil {
		return vesting.BeneficiaryAggregate{}, err
	}
	result.Schedules = schedules
	return result, nil
}

func (p *Postgres) schedules(ctx context.Context, vestingID int64) ([]vesting.NormalizedSchedule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT schedule_id, phase, total::text, released::text, remaining::text, releasable::text,
		       estimated, start_time, end_time, cliff_end
		FROM vesting_schedules
		WHERE beneficiary_vesting_id = $1
		ORDER BY position
	`, vestingID)
	if err != nil {
		return nil, fmt.Errorf("query vesting schedules: %w", err)
	}
	defer rows.Close()

	result := []vesting.NormalizedSchedule{}
	for rows.Next() {
		var (
			s                                      vesting.NormalizedSchedule
			total, released, remaining, releasable string
		)
		if err := rows.Scan(&s.ScheduleID, &s.Phase, &total, &released, &remaining, &releasable,
			&s.Estimated, &s.Start, &s.End, &s.CliffEnd); err != nil {
			return nil, fmt.Errorf("scan vesting schedule: %w", err)
		}
		if s.Total, err = parseDecimal(total); err != nil {
			return nil, err
		}
		if s.Released, err = parseDecimal(released); err != nil {
			return nil, err
		}
		if s.Remaining, err = parseDecimal(remaining); err != nil {
			return nil, err
		}
		if s.Releasable, err = parseDecimal(releasable); err != nil {
			return nil, err
		}
		s.Start, s.End, s.CliffEnd = s.Start.UTC(), s.End.UTC(), s.CliffEnd.UTC()
		result = append(result, s)
	}
	return result, rows.Err()
}

// ReplaceAll upserts the aggregate row, deletes its schedules and inserts
// the new set in a single transaction.
func (p *Postgres) ReplaceAll(ctx context.Context, k store.Key, agg vesting.BeneficiaryAggregate) error {
	if !k.Valid() {
		return store.ErrInvalidRecord
	}
	k = k.Normalized()
	updatedAt := agg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO beneficiary_vestings
			(token_id, contract_address, beneficiary, network, total, released, remaining, releasable, no_vestings, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10)
		ON CONFLICT (token_id, contract_address, beneficiary, network) DO UPDATE SET
			total = EXCLUDED.total,
			released = EXCLUDED.released,
			remaining = EXCLUDED.remaining,
			releasable = EXCLUDED.releasable,
			no_vestings = EXCLUDED.no_vestings,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, k.TokenID, k.Contract, k.Beneficiary, k.Network,
		agg.Total.String(), agg.Released.String(), agg.Remaining.String(), agg.Releasable.String(),
		agg.NoVestings, updatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert beneficiary vesting: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM vesting_schedules WHERE beneficiary_vesting_id = $1`, id); err != nil {
		return fmt.Errorf("delete vesting schedules: %w", err)
	}

	if len(agg.Schedules) > 0 {
		batch := &pgx.Batch{}
		for i, s := range agg.Schedules {
			batch.Queue(`
				INSERT INTO vesting_schedules
					(beneficiary_vesting_id, position, schedule_id, phase, total, released, remaining, releasable,
					 estimated, start_time, end_time, cliff_end)
				VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11, $12)
			`, id, i, s.ScheduleID, s.Phase,
				s.Total.String(), s.Released.String(), s.Remaining.String(), s.Releasable.String(),
				s.Estimated, s.Start, s.End, s.CliffEnd)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert vesting schedules: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (p *Postgres) RefreshOne(ctx context.Context, k store.Key, agg vesting.BeneficiaryAggregate) error {
	return p.ReplaceAll(ctx, k, agg)
}

func (p *Postgres) ListActiveVestingContracts(ctx context.Context, tokenID, network string) ([]vesting.VestingContract, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT token_id, address, network, name, category, active, created_at
		FROM vesting_contracts
		WHERE token_id = $1 AND lower(network) = lower($2) AND active AND category = $3
		ORDER BY created_at ASC, id ASC
	`, tokenID, network, string(vesting.CategoryVesting))
	if err != nil {
		return nil, fmt.Errorf("query vesting contracts: %w", err)
	}
	defer rows.Close()

	result := []vesting.VestingContract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanContract(row pgx.Row) (vesting.VestingContract, error) {
	var (
		c        vesting.VestingContract
		category string
	)
	if err := row.Scan(&c.TokenID, &c.Address, &c.Network, &c.Name, &category, &c.Active, &c.CreatedAt); err != nil {
		return vesting.VestingContract{}, err
	}
	// Rows may be seeded by hand with checksummed addresses.
	c.Address, c.Network = strings.ToLower(c.Address), strings.ToLower(c.Network)
	c.Category = vesting.Category(category)
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (p *Postgres) GetVestingContract(ctx context.Context, tokenID, address, network string) (vesting.VestingContract, error) {
	c, err := scanContract(p.pool.QueryRow(ctx, `
		SELECT token_id, address, network, name, category, active, created_at
		FROM vesting_contracts
		WHERE token_id = $1 AND lower(address) = lower($2) AND lower(network) = lower($3)
	`, tokenID, address, network))
	if errors.Is(err, pgx.ErrNoRows) {
		return vesting.VestingContract{}, store.ErrNotFound
	}
	if err != nil {
		return vesting.VestingContract{}, fmt.Errorf("query vesting contract: %w", err)
	}
	return c, nil
}

func (p *Postgres) GetContractAbi(ctx context.Context, tokenID, address, network string) (vesting.ContractAbi, error) {
	var (
		a      vesting.ContractAbi
		source string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT token_id, contract_address, network, abi, source, created_at
		FROM contract_abis
		WHERE token_id = $1 AND contract_address = lower($2) AND network = lower($3)
	`, tokenID, address, network).Scan(&a.TokenID, &a.ContractAddress, &a.Network, &a.ABI, &source, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return vesting.ContractAbi{}, store.ErrNotFound
	}
	if err != nil {
		return vesting.ContractAbi{}, fmt.Errorf("query contract abi: %w", err)
	}
	a.Source = vesting.Source(source)
	return a, nil
}

func (p *Postgres) SaveContractAbi(ctx context.Context, a vesting.ContractAbi) error {
	if a.TokenID == "" || a.ContractAddress == "" || a.Network == "" {
		return store.ErrInvalidRecord
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO contract_abis (token_id, contract_address, network, abi, source)
		VALUES ($1, lower($2), lower($3), $4, $5)
		ON CONFLICT (token_id, contract_address, network) DO UPDATE SET
			abi = EXCLUDED.abi,
			source = EXCLUDED.source,
			created_at = now()
	`, a.TokenID, a.ContractAddress, a.Network, a.ABI, string(a.Source))
	if err != nil {
		return fmt.Errorf("save contract abi: %w", err)
	}
	return nil
}

func (p *Postgres) GetToken(ctx context.Context, tokenID string) (vesting.TokenContext, error) {
	var (
		t        vesting.TokenContext
		decimals int16
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, address, network, symbol, decimals, primary_api_key, secondary_api_key
		FROM tokens
		WHERE id = $1
	`, tokenID).Scan(&t.TokenID, &t.Address, &t.Network, &t.Symbol, &decimals, &t.Keys.Primary, &t.Keys.Secondary)
	if errors.Is(err, pgx.ErrNoRows) {
		return vesting.TokenContext{}, store.ErrNotFound
	}
	if err != nil {
		return vesting.TokenContext{}, fmt.Errorf("query token: %w", err)
	}
	t.Decimals = uint8(decimals)
	return t, nil
}
