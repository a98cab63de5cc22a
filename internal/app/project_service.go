package app

import (
	"context"
	"strings"

	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

// ProjectRepository persists projects, their members and their holdings.
// Holding updates must be serialized per project.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjectsByMember(ctx context.Context, userID string) ([]domain.Project, error)
	AddMember(ctx context.Context, projectID, userID string) error
	GetHoldings(ctx context.Context, projectID string) (map[string]int, error)
	IncrementHolding(ctx context.Context, projectID, poolName string, qty int) error
	// DecrementHolding fails with domain.ErrExceedsHeld when the project holds
	// fewer than qty units; a holding that reaches zero is removed.
	DecrementHolding(ctx context.Context, projectID, poolName string, qty int) error
}

// UserLookup is the slice of the identity store the registry depends on.
type UserLookup interface {
	GetUser(ctx context.Context, username string) (domain.User, error)
}

type ProjectService struct {
	repo  ProjectRepository
	users UserLookup
	clock clock.Clock
}

func NewProjectService(repo ProjectRepository, users UserLookup, clk clock.Clock) *ProjectService {
	return &ProjectService{
		repo:  repo,
		users: users,
		clock: clk,
	}
}

type CreateProjectInput struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
}

func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	id := strings.TrimSpace(in.ID)
	name := strings.TrimSpace(in.Name)
	if id == "" || name == "" {
		return domain.Project{}, domain.ErrInvalidName
	}
	if _, err := s.users.GetUser(ctx, in.CreatedBy); err != nil {
		return domain.Project{}, err
	}

	project := domain.Project{
		ID:          id,
		Name:        name,
		Description: in.Description,
		CreatedBy:   in.CreatedBy,
		Members:     []string{in.CreatedBy},
		Holdings:    map[string]int{},
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return s.repo.GetProject(ctx, id)
}

// JoinProject adds userID to the project's member set. Joining twice is a no-op.
func (s *ProjectService) JoinProject(ctx context.Context, projectID, userID string) error {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.AddMember(ctx, projectID, userID)
}

func (s *ProjectService) ListUserProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	return s.repo.ListProjectsByMember(ctx, userID)
}

func (s *ProjectService) GetHoldings(ctx context.Context, projectID string) (map[string]int, error) {
	return s.repo.GetHoldings(ctx, projectID)
}

func (s *ProjectService) IncrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.IncrementHolding(ctx, projectID, poolName, qty)
}

func (s *ProjectService) DecrementHolding(ctx context.Context, projectID, poolName string, qty int) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	return s.repo.DecrementHolding(ctx, projectID, poolName, qty)
}
