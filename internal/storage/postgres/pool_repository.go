package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type PoolRepository struct {
	db
}

func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{db: db{pool: pool}}
}

func (r *PoolRepository) CreatePool(ctx context.Context, pool domain.Pool) error {
	const stmt = `INSERT INTO hardware_pools (name, capacity, available, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.exec(ctx, stmt, pool.Name, pool.Capacity, pool.Available, pool.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPoolAlreadyExists
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidCapacity
		}
		return wrap("create pool", err)
	}
	return nil
}

func (r *PoolRepository) GetPool(ctx context.Context, name string) (domain.Pool, error) {
	const query = `SELECT name, capacity, available, created_at FROM hardware_pools WHERE name = $1`
	var p domain.Pool
	err := r.queryRow(ctx, query, name).Scan(&p.Name, &p.Capacity, &p.Available, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Pool{}, domain.ErrPoolNotFound
		}
		return domain.Pool{}, wrap("get pool", err)
	}
	return p, nil
}

func (r *PoolRepository) ListPools(ctx context.Context) ([]domain.Pool, error) {
	const query = `SELECT name, capacity, available, created_at FROM hardware_pools ORDER BY name`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, wrap("list pools", err)
	}
	pools, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Pool, error) {
		var p domain.Pool
		err := row.Scan(&p.Name, &p.Capacity, &p.Available, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, wrap("list pools", err)
	}
	return pools, nil
}

// Reserve is one conditional UPDATE, so concurrent reservations against the
// same row serialize on the row lock and none can overdraw it.
func (r *PoolRepository) Reserve(ctx context.Context, name string, qty int) error {
	const stmt = `UPDATE hardware_pools SET available = available - $2 WHERE name = $1 AND available >= $2`
	tag, err := r.exec(ctx, stmt, name, qty)
	if err != nil {
		return wrap("reserve", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetPool(ctx, name); err != nil {
		return err
	}
	return domain.ErrInsufficientCapacity
}

func (r *PoolRepository) Release(ctx context.Context, name string, qty int) error {
	const stmt = `UPDATE hardware_pools SET available = available + $2 WHERE name = $1 AND available + $2 <= capacity`
	tag, err := r.exec(ctx, stmt, name, qty)
	if err != nil {
		return wrap("release", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetPool(ctx, name); err != nil {
		return err
	}
	return domain.ErrInconsistentState
}

func (r *PoolRepository) AppendEvent(ctx context.Context, e domain.LedgerEvent) error {
	const stmt = `
INSERT INTO ledger_events (id, pool_name, action, project_id, user_id, quantity, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt, e.ID, e.PoolName, string(e.Action), e.ProjectID, e.UserID, e.Quantity, e.Timestamp)
	if err != nil {
		if foreignKeyViolation(err) != "" {
			return domain.ErrPoolNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidAction
		}
		return wrap("append event", err)
	}
	return nil
}

const eventColumns = `id::text, pool_name, action, project_id, user_id, quantity, created_at`

func (r *PoolRepository) ListEvents(ctx context.Context, poolName string) ([]domain.LedgerEvent, error) {
	if _, err := r.GetPool(ctx, poolName); err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE pool_name = $1 ORDER BY seq`, poolName)
	if err != nil {
		return nil, wrap("list events", err)
	}
	return collectEvents(rows)
}

func (r *PoolRepository) ListEventsByProject(ctx context.Context, projectID string) ([]domain.LedgerEvent, error) {
	rows, err := r.query(ctx, `SELECT `+eventColumns+` FROM ledger_events WHERE project_id = $1 ORDER BY seq`, projectID)
	if err != nil {
		return nil, wrap("list project events", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.LedgerEvent, error) {
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEvent, error) {
		var e domain.LedgerEvent
		var action string
		err := row.Scan(&e.ID, &e.PoolName, &action, &e.ProjectID, &e.UserID, &e.Quantity, &e.Timestamp)
		e.Action = domain.LedgerAction(action)
		e.Timestamp = e.Timestamp.UTC()
		return e, err
	})
	if err != nil {
		return nil, wrap("scan events", err)
	}
	return events, nil
}
