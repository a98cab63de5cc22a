package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
	"github.com/karanb04/18815-GoatTeam/internal/testutil"
)

func TestPoolRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewPoolRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("CreatePool and GetPool", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, repo.CreatePool(ctx, domain.Pool{Name: "HWSet1", Capacity: 100, Available: 100, CreatedAt: now}))
		assert.ErrorIs(t, repo.CreatePool(ctx, domain.Pool{Name: "HWSet1", Capacity: 5, Available: 5, CreatedAt: now}), domain.ErrPoolAlreadyExists)

		p, err := repo.GetPool(ctx, "HWSet1")
		require.NoError(t, err)
		assert.Equal(t, 100, p.Capacity)
		assert.Equal(t, 100, p.Available)

		_, err = repo.GetPool(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)

		pools, err := repo.ListPools(ctx)
		require.NoError(t, err)
		assert.Len(t, pools, 1)
	})

	t.Run("Reserve and Release are conditional", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertPool(t, ctx, pool, "HWSet1", 10)

		require.NoError(t, repo.Reserve(ctx, "HWSet1", 7))
		assert.ErrorIs(t, repo.Reserve(ctx, "HWSet1", 4), domain.ErrInsufficientCapacity)
		assert.ErrorIs(t, repo.Reserve(ctx, "missing", 1), domain.ErrPoolNotFound)

		require.NoError(t, repo.Release(ctx, "HWSet1", 7))
		assert.ErrorIs(t, repo.Release(ctx, "HWSet1", 1), domain.ErrInconsistentState)
		assert.ErrorIs(t, repo.Release(ctx, "missing", 1), domain.ErrPoolNotFound)

		p, err := repo.GetPool(ctx, "HWSet1")
		require.NoError(t, err)
		assert.Equal(t, 10, p.Available)
	})

	t.Run("concurrent Reserve never overdraws", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		const n = 20
		testutil.InsertPool(t, ctx, pool, "HWSet1", n)

		var wg sync.WaitGroup
		var ok, denied atomic.Int32
		for i := 0; i < n+5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Reserve(ctx, "HWSet1", 1)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, domain.ErrInsufficientCapacity):
					denied.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, n, ok.Load())
		assert.EqualValues(t, 5, denied.Load())
	})

	t.Run("events are ordered per pool and per project", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertPool(t, ctx, pool, "HWSet1", 10)
		testutil.InsertPool(t, ctx, pool, "HWSet2", 10)

		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		first := domain.LedgerEvent{ID: uuid.NewString(), PoolName: "HWSet1", Action: domain.ActionCheckout, ProjectID: "p1", UserID: "alice", Quantity: 2, Timestamp: now}
		second := domain.LedgerEvent{ID: uuid.NewString(), PoolName: "HWSet2", Action: domain.ActionCheckout, ProjectID: "p1", UserID: "alice", Quantity: 1, Timestamp: now.Add(time.Second)}
		third := domain.LedgerEvent{ID: uuid.NewString(), PoolName: "HWSet1", Action: domain.ActionCheckin, ProjectID: "p2", UserID: "bob", Quantity: 2, Timestamp: now.Add(2 * time.Second)}
		for _, e := range []domain.LedgerEvent{first, second, third} {
			require.NoError(t, repo.AppendEvent(ctx, e))
		}

		events, err := repo.ListEvents(ctx, "HWSet1")
		require.NoError(t, err)
		assert.Equal(t, []domain.LedgerEvent{first, third}, events)

		byProject, err := repo.ListEventsByProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, []domain.LedgerEvent{first, second}, byProject)

		_, err = repo.ListEvents(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)

		err = repo.AppendEvent(ctx, domain.LedgerEvent{ID: uuid.NewString(), PoolName: "missing", Action: domain.ActionCheckout, Quantity: 1, Timestamp: now})
		assert.ErrorIs(t, err, domain.ErrPoolNotFound)
	})

	t.Run("cancelled context is a storage error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := repo.Reserve(ctx, "HWSet1", 1)
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	})
}

func TestProjectRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewProjectRepository(pool)
	users := NewUserRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("CreateProject, AddMember and ListProjectsByMember", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		require.NoError(t, users.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "h", CreatedAt: now}))
		require.NoError(t, users.CreateUser(ctx, domain.User{Username: "bob", PasswordHash: "h", CreatedAt: now}))

		require.NoError(t, repo.CreateProject(ctx, domain.Project{ID: "p1", Name: "Rover", CreatedBy: "alice", Members: []string{"alice"}, CreatedAt: now}))
		assert.ErrorIs(t, repo.CreateProject(ctx, domain.Project{ID: "p1", Name: "Again", CreatedBy: "alice", CreatedAt: now}), domain.ErrProjectAlreadyExists)

		require.NoError(t, repo.AddMember(ctx, "p1", "bob"))
		require.NoError(t, repo.AddMember(ctx, "p1", "bob"))
		assert.ErrorIs(t, repo.AddMember(ctx, "p9", "bob"), domain.ErrProjectNotFound)
		assert.ErrorIs(t, repo.AddMember(ctx, "p1", "carol"), domain.ErrUserNotFound)

		p, err := repo.GetProject(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, p.Members)
		assert.Equal(t, now, p.CreatedAt)

		projects, err := repo.ListProjectsByMember(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, "p1", projects[0].ID)

		u, err := users.GetUser(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, u.ProjectMemberships)

		_, err = repo.GetProject(ctx, "p9")
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})

	t.Run("holdings are removed at zero", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertPool(t, ctx, pool, "HWSet1", 100)
		testutil.InsertUserWithProject(t, ctx, pool, "alice", "p1")

		require.NoError(t, repo.IncrementHolding(ctx, "p1", "HWSet1", 30))
		require.NoError(t, repo.IncrementHolding(ctx, "p1", "HWSet1", 5))
		assert.ErrorIs(t, repo.IncrementHolding(ctx, "p9", "HWSet1", 1), domain.ErrProjectNotFound)
		assert.ErrorIs(t, repo.IncrementHolding(ctx, "p1", "ghost", 1), domain.ErrPoolNotFound)

		h, err := repo.GetHoldings(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"HWSet1": 35}, h)

		assert.ErrorIs(t, repo.DecrementHolding(ctx, "p1", "HWSet1", 36), domain.ErrExceedsHeld)
		assert.ErrorIs(t, repo.DecrementHolding(ctx, "p1", "HWSet2", 1), domain.ErrExceedsHeld)
		assert.ErrorIs(t, repo.DecrementHolding(ctx, "p9", "HWSet1", 1), domain.ErrProjectNotFound)

		require.NoError(t, repo.DecrementHolding(ctx, "p1", "HWSet1", 10))
		require.NoError(t, repo.DecrementHolding(ctx, "p1", "HWSet1", 25))

		h, err = repo.GetHoldings(ctx, "p1")
		require.NoError(t, err)
		assert.Empty(t, h)

		var rows int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM project_holdings`).Scan(&rows))
		assert.Zero(t, rows)
	})

	t.Run("concurrent decrements never go negative", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertPool(t, ctx, pool, "HWSet1", 100)
		testutil.InsertUserWithProject(t, ctx, pool, "alice", "p1")
		require.NoError(t, repo.IncrementHolding(ctx, "p1", "HWSet1", 10))

		var wg sync.WaitGroup
		var ok atomic.Int32
		for i := 0; i < 15; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := repo.DecrementHolding(ctx, "p1", "HWSet1", 1); err == nil {
					ok.Add(1)
				} else if !errors.Is(err, domain.ErrExceedsHeld) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 10, ok.Load())
	})
}

func TestUserRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewUserRepository(pool)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "$argon2id$x", CreatedAt: now}))
	assert.ErrorIs(t, repo.CreateUser(ctx, domain.User{Username: "alice", PasswordHash: "y", CreatedAt: now}), domain.ErrUserAlreadyExists)

	u, err := repo.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$x", u.PasswordHash)
	assert.Equal(t, now, u.CreatedAt)
	assert.Empty(t, u.ProjectMemberships)

	_, err = repo.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
