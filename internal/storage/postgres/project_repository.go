package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type ProjectRepository struct {
	db
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db{pool: pool}}
}

// CreateProject inserts the project and its initial members in one transaction.
func (r *ProjectRepository) CreateProject(ctx context.Context, p domain.Project) error {
	return r.withTx(ctx, func(ctx context.Context) error {
		const stmt = `INSERT INTO projects (id, name, description, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`
		if _, err := r.exec(ctx, stmt, p.ID, p.Name, p.Description, p.CreatedBy, p.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrProjectAlreadyExists
			}
			return wrap("create project", err)
		}
		for _, m := range p.Members {
			if err := r.AddMember(ctx, p.ID, m); err != nil {
				return err
			}
		}
		for pool, qty := range p.Holdings {
			if qty <= 0 {
				continue
			}
			if err := r.IncrementHolding(ctx, p.ID, pool, qty); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProjectRepository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	const query = `SELECT id, name, description, created_by, created_at FROM projects WHERE id = $1`
	var p domain.Project
	err := r.queryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, domain.ErrProjectNotFound
		}
		return domain.Project{}, wrap("get project", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()

	rows, err := r.query(ctx, `SELECT username FROM project_members WHERE project_id = $1 ORDER BY username`, id)
	if err != nil {
		return domain.Project{}, wrap("list members", err)
	}
	p.Members, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return domain.Project{}, wrap("list members", err)
	}

	p.Holdings, err = r.holdings(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (r *ProjectRepository) ListProjectsByMember(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.query(ctx, `SELECT project_id FROM project_members WHERE username = $1 ORDER BY project_id`, userID)
	if err != nil {
		return nil, wrap("list member projects", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap("list member projects", err)
	}

	projects := make([]domain.Project, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetProject(ctx, id)
		if errors.Is(err, domain.ErrProjectNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, projectID, userID string) error {
	const stmt = `INSERT INTO project_members (project_id, username) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.exec(ctx, stmt, projectID, userID); err != nil {
		switch foreignKeyViolation(err) {
		case "":
			return wrap("add member", err)
		case "project_members_project_id_fkey":
			return domain.ErrProjectNotFound
		default:
			return domain.ErrUserNotFound
		}
	}
	return nil
}

func (r *ProjectRepository) GetHoldings(ctx context.Context, projectID string) (map[string]int, error) {
	if err := r.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	return r.holdings(ctx, projectID)
}

func (r *ProjectRepository) IncrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	const stmt = `
INSERT INTO project_holdings (project_id, pool_name, quantity) VALUES ($1, $2, $3)
ON CONFLICT (project_id, pool_name) DO UPDATE SET quantity = project_holdings.quantity + EXCLUDED.quantity`

	if _, err := r.exec(ctx, stmt, projectID, poolName, qty); err != nil {
		switch foreignKeyViolation(err) {
		case "":
			return wrap("increment holding", err)
		case "project_holdings_pool_name_fkey":
			return domain.ErrPoolNotFound
		default:
			return domain.ErrProjectNotFound
		}
	}
	return nil
}

// DecrementHolding locks the holding row, then updates or deletes it. A
// missing row means the project holds nothing of that pool.
func (r *ProjectRepository) DecrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	return r.withTx(ctx, func(ctx context.Context) error {
		const lock = `SELECT quantity FROM project_holdings WHERE project_id = $1 AND pool_name = $2 FOR UPDATE`
		var held int
		err := r.queryRow(ctx, lock, projectID, poolName).Scan(&held)
		if errors.Is(err, pgx.ErrNoRows) {
			if err := r.ensureProject(ctx, projectID); err != nil {
				return err
			}
			return domain.ErrExceedsHeld
		}
		if err != nil {
			return wrap("lock holding", err)
		}

		switch {
		case held < qty:
			return domain.ErrExceedsHeld
		case held == qty:
			_, err = r.exec(ctx, `DELETE FROM project_holdings WHERE project_id = $1 AND pool_name = $2`, projectID, poolName)
		default:
			_, err = r.exec(ctx, `UPDATE project_holdings SET quantity = quantity - $3 WHERE project_id = $1 AND pool_name = $2`, projectID, poolName, qty)
		}
		return wrap("decrement holding", err)
	})
}

func (r *ProjectRepository) holdings(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.query(ctx, `SELECT pool_name, quantity FROM project_holdings WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, wrap("list holdings", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var qty int
		if err := rows.Scan(&name, &qty); err != nil {
			return nil, wrap("scan holding", err)
		}
		out[name] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list holdings", err)
	}
	return out, nil
}

func (r *ProjectRepository) ensureProject(ctx context.Context, id string) error {
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return wrap("check project", err)
	}
	if !exists {
		return domain.ErrProjectNotFound
	}
	return nil
}
