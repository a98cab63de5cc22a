package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

const (
	maxUsernameLength = 64
	maxPasswordLength = 128

	// Hashed once and verified against for unknown usernames, so both paths
	// pay the same hashing cost.
	unknownUserPassword = "hwledger-unknown-user"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, username string) (domain.User, error)
}

// PasswordHasher produces and checks one-way credential hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

type UserService struct {
	repo   UserRepository
	hasher PasswordHasher
	clock  clock.Clock

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(repo UserRepository, hasher PasswordHasher, clk clock.Clock) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		clock:  clk,
	}
}

func (s *UserService) Register(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return domain.User{}, domain.ErrInvalidName
	}
	if password == "" || len(password) > maxPasswordLength {
		return domain.User{}, domain.ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login verifies the credentials. Unknown users and wrong passwords both
// yield domain.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hasher.Verify(password, s.unknownUserHash())
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(unknownUserPassword)
	})
	return s.dummyHash
}

func (s *UserService) GetUser(ctx context.Context, username string) (domain.User, error) {
	return s.repo.GetUser(ctx, username)
}
