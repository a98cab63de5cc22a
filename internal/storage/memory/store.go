// Package memory keeps pools, projects and users in process memory.
//
// Each pool and each project carries its own mutex, so every check-and-update
// on one pool is serialized while different pools proceed in parallel. The
// store-level lock only guards the maps themselves.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

type poolEntry struct {
	mu        sync.Mutex
	name      string
	capacity  int
	available int
	history   []domain.LedgerEvent
	createdAt time.Time
}

type projectEntry struct {
	mu          sync.Mutex
	id          string
	name        string
	description string
	createdBy   string
	members     map[string]struct{}
	holdings    map[string]int
	createdAt   time.Time
}

type userEntry struct {
	username     string
	passwordHash string
	createdAt    time.Time
}

// Store implements the pool, project and user repositories.
type Store struct {
	mu       sync.RWMutex
	pools    map[string]*poolEntry
	projects map[string]*projectEntry
	users    map[string]*userEntry
}

func NewStore() *Store {
	return &Store{
		pools:    make(map[string]*poolEntry),
		projects: make(map[string]*projectEntry),
		users:    make(map[string]*userEntry),
	}
}

// Ping reports the store as healthy unless ctx is already done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Pools

func (s *Store) CreatePool(ctx context.Context, pool domain.Pool) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("create pool", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[pool.Name]; exists {
		return domain.ErrPoolAlreadyExists
	}
	s.pools[pool.Name] = &poolEntry{
		name:      pool.Name,
		capacity:  pool.Capacity,
		available: pool.Available,
		createdAt: pool.CreatedAt,
	}
	return nil
}

func (s *Store) GetPool(ctx context.Context, name string) (domain.Pool, error) {
	p, err := s.pool(ctx, name)
	if err != nil {
		return domain.Pool{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(), nil
}

func (s *Store) ListPools(ctx context.Context) ([]domain.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("list pools", err)
	}
	s.mu.RLock()
	entries := make([]*poolEntry, 0, len(s.pools))
	for _, p := range s.pools {
		entries = append(entries, p)
	}
	s.mu.RUnlock()

	out := make([]domain.Pool, 0, len(entries))
	for _, p := range entries {
		p.mu.Lock()
		out = append(out, p.snapshot())
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Reserve(ctx context.Context, name string, qty int) error {
	p, err := s.pool(ctx, name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.available < qty {
		return domain.ErrInsufficientCapacity
	}
	p.available -= qty
	return nil
}

func (s *Store) Release(ctx context.Context, name string, qty int) error {
	p, err := s.pool(ctx, name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.available+qty > p.capacity {
		return domain.ErrInconsistentState
	}
	p.available += qty
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event domain.LedgerEvent) error {
	p, err := s.pool(ctx, event.PoolName)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history, event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, poolName string) ([]domain.LedgerEvent, error) {
	p, err := s.pool(ctx, poolName)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.LedgerEvent{}, p.history...), nil
}

func (s *Store) ListEventsByProject(ctx context.Context, projectID string) ([]domain.LedgerEvent, error) {
	pools, err := s.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	events := []domain.LedgerEvent{}
	for _, p := range pools {
		for _, e := range p.History {
			if e.ProjectID == projectID {
				events = append(events, e)
			}
		}
	}
	return events, nil
}

func (s *Store) pool(ctx context.Context, name string) (*poolEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("pool "+name, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[name]
	if !ok {
		return nil, domain.ErrPoolNotFound
	}
	return p, nil
}

// snapshot must be called with p.mu held.
func (p *poolEntry) snapshot() domain.Pool {
	return domain.Pool{
		Name:      p.name,
		Capacity:  p.capacity,
		Available: p.available,
		History:   append([]domain.LedgerEvent{}, p.history...),
		CreatedAt: p.createdAt,
	}
}

// Projects

func (s *Store) CreateProject(ctx context.Context, project domain.Project) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("create project", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.projects[project.ID]; exists {
		return domain.ErrProjectAlreadyExists
	}
	members := make(map[string]struct{}, len(project.Members))
	for _, m := range project.Members {
		members[m] = struct{}{}
	}
	holdings := make(map[string]int, len(project.Holdings))
	for name, qty := range project.Holdings {
		if qty > 0 {
			holdings[name] = qty
		}
	}
	s.projects[project.ID] = &projectEntry{
		id:          project.ID,
		name:        project.Name,
		description: project.Description,
		createdBy:   project.CreatedBy,
		members:     members,
		holdings:    holdings,
		createdAt:   project.CreatedAt,
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := s.project(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot(), nil
}

func (s *Store) ListProjectsByMember(ctx context.Context, userID string) ([]domain.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("list projects", err)
	}
	s.mu.RLock()
	entries := make([]*projectEntry, 0, len(s.projects))
	for _, p := range s.projects {
		entries = append(entries, p)
	}
	s.mu.RUnlock()

	out := []domain.Project{}
	for _, p := range entries {
		p.mu.Lock()
		if _, ok := p.members[userID]; ok {
			out = append(out, p.snapshot())
		}
		p.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddMember(ctx context.Context, projectID, userID string) error {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[userID] = struct{}{}
	return nil
}

func (s *Store) GetHoldings(ctx context.Context, projectID string) (map[string]int, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyHoldings(p.holdings), nil
}

func (s *Store) IncrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdings[poolName] += qty
	return nil
}

func (s *Store) DecrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.holdings[poolName]
	if held < qty {
		return domain.ErrExceedsHeld
	}
	if held == qty {
		delete(p.holdings, poolName)
		return nil
	}
	p.holdings[poolName] = held - qty
	return nil
}

func (s *Store) project(ctx context.Context, id string) (*projectEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Unavailable("project "+id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

// snapshot must be called with p.mu held.
func (p *projectEntry) snapshot() domain.Project {
	members := make([]string, 0, len(p.members))
	for m := range p.members {
		members = append(members, m)
	}
	sort.Strings(members)
	return domain.Project{
		ID:          p.id,
		Name:        p.name,
		Description: p.description,
		CreatedBy:   p.createdBy,
		Members:     members,
		Holdings:    copyHoldings(p.holdings),
		CreatedAt:   p.createdAt,
	}
}

func copyHoldings(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Users

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable("create user", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return domain.ErrUserAlreadyExists
	}
	s.users[user.Username] = &userEntry{
		username:     user.Username,
		passwordHash: user.PasswordHash,
		createdAt:    user.CreatedAt,
	}
	return nil
}

// GetUser returns the user with the projects they are a member of.
func (s *Store) GetUser(ctx context.Context, username string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, domain.Unavailable("get user", err)
	}
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}

	projects, err := s.ListProjectsByMember(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	memberships := make([]string, 0, len(projects))
	for _, p := range projects {
		memberships = append(memberships, p.ID)
	}
	return domain.User{
		Username:           u.username,
		PasswordHash:       u.passwordHash,
		ProjectMemberships: memberships,
		CreatedAt:          u.createdAt,
	}, nil
}
