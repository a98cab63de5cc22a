package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPoolNotFound         = errors.New("hardware set not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrPoolAlreadyExists    = errors.New("hardware set already exists")
	ErrProjectAlreadyExists = errors.New("project already exists")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrExceedsHeld          = errors.New("cannot check in more than checked out")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidCapacity      = errors.New("invalid capacity")
	ErrInvalidName          = errors.New("invalid name")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrInvalidAction        = errors.New("invalid ledger action")
	ErrNotMember            = errors.New("user is not a member of the project")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrInconsistentState    = errors.New("inconsistent state: manual reconciliation required")
)

// Kind classifies errors for callers that need a stable, machine-readable category.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindAlreadyExists        Kind = "already_exists"
	KindInsufficientCapacity Kind = "insufficient_capacity"
	KindExceedsHeld          Kind = "exceeds_held"
	KindInvalidArgument      Kind = "invalid_argument"
	KindPermissionDenied     Kind = "permission_denied"
	KindUnauthenticated      Kind = "unauthenticated"
	KindStorageUnavailable   Kind = "storage_unavailable"
	KindInconsistentState    Kind = "inconsistent_state"
	KindInternal             Kind = "internal"
)

// KindOf maps err onto the error taxonomy. InconsistentState wins over every
// other kind because it may wrap the storage error that caused it.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInconsistentState):
		return KindInconsistentState
	case errors.Is(err, ErrPoolNotFound), errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrPoolAlreadyExists), errors.Is(err, ErrProjectAlreadyExists), errors.Is(err, ErrUserAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrInsufficientCapacity):
		return KindInsufficientCapacity
	case errors.Is(err, ErrExceedsHeld):
		return KindExceedsHeld
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidCapacity),
		errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrInvalidAction):
		return KindInvalidArgument
	case errors.Is(err, ErrNotMember):
		return KindPermissionDenied
	case errors.Is(err, ErrInvalidCredentials):
		return KindUnauthenticated
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	default:
		return KindInternal
	}
}

// StorageError wraps a transient failure of the backing store.
type StorageError struct {
	Op  string
	Err error
}

// Unavailable wraps err as a StorageError for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStorageUnavailable, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// InconsistentStateError reports a coordinator sequence whose compensation
// could not be confirmed. Pool availability and project holdings may disagree
// by Quantity units until an operator reconciles them.
type InconsistentStateError struct {
	Op        string
	Step      string
	ProjectID string
	PoolName  string
	Quantity  int
	Err       error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s project=%s pool=%s qty=%d: compensating %s failed: %v: %s",
		e.Op, e.ProjectID, e.PoolName, e.Quantity, e.Step, e.Err, ErrInconsistentState)
}

func (e *InconsistentStateError) Unwrap() error { return e.Err }

func (e *InconsistentStateError) Is(target error) bool { return target == ErrInconsistentState }
