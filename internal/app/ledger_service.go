package app

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

// PoolRepository persists hardware pools and their event history.
// Reserve and Release must be linearizable per pool name.
type PoolRepository interface {
	CreatePool(ctx context.Context, pool domain.Pool) error
	GetPool(ctx context.Context, name string) (domain.Pool, error)
	ListPools(ctx context.Context) ([]domain.Pool, error)
	// Reserve decrements availability by qty iff at least qty units are available.
	Reserve(ctx context.Context, name string, qty int) error
	// Release increments availability by qty. Exceeding capacity is reported
	// as domain.ErrInconsistentState and leaves the pool untouched.
	Release(ctx context.Context, name string, qty int) error
	AppendEvent(ctx context.Context, event domain.LedgerEvent) error
	ListEvents(ctx context.Context, poolName string) ([]domain.LedgerEvent, error)
	ListEventsByProject(ctx context.Context, projectID string) ([]domain.LedgerEvent, error)
}

type LedgerService struct {
	repo  PoolRepository
	clock clock.Clock
}

func NewLedgerService(repo PoolRepository, clk clock.Clock) *LedgerService {
	return &LedgerService{
		repo:  repo,
		clock: clk,
	}
}

type CreatePoolInput struct {
	Name     string
	Capacity int
}

func (s *LedgerService) CreatePool(ctx context.Context, in CreatePoolInput) (domain.Pool, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Pool{}, domain.ErrInvalidName
	}
	if in.Capacity <= 0 {
		return domain.Pool{}, domain.ErrInvalidCapacity
	}

	pool := domain.Pool{
		Name:      name,
		Capacity:  in.Capacity,
		Available: in.Capacity,
		History:   []domain.LedgerEvent{},
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreatePool(ctx, pool); err != nil {
		return domain.Pool{}, err
	}
	return pool, nil
}

// SeedPools provisions specs, skipping pools that already exist.
// It returns the names that were created.
func (s *LedgerService) SeedPools(ctx context.Context, specs []domain.PoolSpec) ([]string, error) {
	var created []string
	for _, spec := range specs {
		_, err := s.CreatePool(ctx, CreatePoolInput{Name: spec.Name, Capacity: spec.Capacity})
		if errors.Is(err, domain.ErrPoolAlreadyExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

func (s *LedgerService) Reserve(ctx context.Context, name string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.Reserve(ctx, name, qty)
}

func (s *LedgerService) Release(ctx context.Context, name string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.Release(ctx, name, qty)
}

// RecordEvent appends event to its pool's history, filling in the id and
// timestamp when the caller left them empty.
func (s *LedgerService) RecordEvent(ctx context.Context, event domain.LedgerEvent) (domain.LedgerEvent, error) {
	if !event.Action.Valid() {
		return domain.LedgerEvent{}, domain.ErrInvalidAction
	}
	if event.Quantity <= 0 {
		return domain.LedgerEvent{}, domain.ErrInvalidQuantity
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.repo.AppendEvent(ctx, event); err != nil {
		return domain.LedgerEvent{}, err
	}
	return event, nil
}

// GetPool returns the pool with its full history, oldest event first.
func (s *LedgerService) GetPool(ctx context.Context, name string) (domain.Pool, error) {
	pool, err := s.repo.GetPool(ctx, name)
	if err != nil {
		return domain.Pool{}, err
	}
	events, err := s.repo.ListEvents(ctx, name)
	if err != nil {
		return domain.Pool{}, err
	}
	pool.History = events
	return pool, nil
}

func (s *LedgerService) ListPools(ctx context.Context) ([]domain.PoolSummary, error) {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PoolSummary, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *LedgerService) PoolNames(ctx context.Context) ([]string, error) {
	summaries, err := s.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(summaries))
	for _, p := range summaries {
		names = append(names, p.Name)
	}
	return names, nil
}

// Inventory returns every pool with its history, ordered by name.
func (s *LedgerService) Inventory(ctx context.Context) ([]domain.Pool, error) {
	pools, err := s.repo.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	for i := range pools {
		events, err := s.repo.ListEvents(ctx, pools[i].Name)
		if err != nil {
			return nil, err
		}
		pools[i].History = events
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Name < pools[j].Name })
	return pools, nil
}

// ProjectHistory lists a project's events across all pools, most recent first.
func (s *LedgerService) ProjectHistory(ctx context.Context, projectID string) ([]domain.LedgerEvent, error) {
	events, err := s.repo.ListEventsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}
