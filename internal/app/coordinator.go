package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/karanb04/18815-GoatTeam/internal/clock"
	"github.com/karanb04/18815-GoatTeam/internal/domain"
)

// Ledger is the pool side of a checkout or checkin.
type Ledger interface {
	Reserve(ctx context.Context, name string, qty int) error
	Release(ctx context.Context, name string, qty int) error
	RecordEvent(ctx context.Context, event domain.LedgerEvent) (domain.LedgerEvent, error)
}

// HoldingsRegistry is the project side of a checkout or checkin.
type HoldingsRegistry interface {
	GetProject(ctx context.Context, id string) (domain.Project, error)
	IncrementHolding(ctx context.Context, projectID, poolName string, qty int) error
	DecrementHolding(ctx context.Context, projectID, poolName string, qty int) error
}

// OutcomeRecorder receives one observation per coordinator call and per
// compensating step.
type OutcomeRecorder interface {
	ObserveOperation(op, outcome string)
	ObserveCompensation(step, result string)
}

const (
	OpCheckOut = "check_out"
	OpCheckIn  = "check_in"

	StepRelease          = "release"
	StepReserve          = "reserve"
	StepIncrementHolding = "increment_holding"
	StepDecrementHolding = "decrement_holding"

	OutcomeSuccess = "success"
)

const (
	defaultCompensationAttempts = 4
	defaultCompensationBackoff  = 50 * time.Millisecond
	defaultCompensationTimeout  = 10 * time.Second
	maxCompensationDelay        = time.Second
)

// Coordinator moves units between a pool and a project's holdings. The two
// aggregates are updated in sequence, and a failed later step is undone by
// compensating the earlier ones.
type Coordinator struct {
	ledger   Ledger
	registry HoldingsRegistry
	clock    clock.Clock
	log      zerolog.Logger
	recorder OutcomeRecorder

	attempts uint64
	backoff  time.Duration
	timeout  time.Duration
}

type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used for compensation and reconciliation messages.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithOutcomeRecorder sets where operation outcomes are reported.
func WithOutcomeRecorder(r OutcomeRecorder) CoordinatorOption {
	return func(c *Coordinator) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithCompensationRetry overrides how many times a compensating step (and an
// event append) is attempted and the initial backoff between attempts.
func WithCompensationRetry(attempts int, backoff time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if attempts > 0 {
			c.attempts = uint64(attempts)
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithCompensationTimeout bounds the total time spent compensating one call.
func WithCompensationTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewCoordinator(ledger Ledger, registry HoldingsRegistry, clk clock.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ledger:   ledger,
		registry: registry,
		clock:    clk,
		log:      zerolog.Nop(),
		recorder: noopRecorder{},
		attempts: defaultCompensationAttempts,
		backoff:  defaultCompensationBackoff,
		timeout:  defaultCompensationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type TransferInput struct {
	ProjectID string
	PoolName  string
	Quantity  int
	UserID    string
}

// CheckOut reserves units from the pool and adds them to the project's holdings.
func (c *Coordinator) CheckOut(ctx context.Context, in TransferInput) (err error) {
	defer func() { c.finish(OpCheckOut, in, err) }()

	if in.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := c.authorize(ctx, in); err != nil {
		return err
	}

	if err := c.ledger.Reserve(ctx, in.PoolName, in.Quantity); err != nil {
		return err
	}
	if err := c.registry.IncrementHolding(ctx, in.ProjectID, in.PoolName, in.Quantity); err != nil {
		return c.compensate(ctx, OpCheckOut, in, err, StepRelease)
	}
	if err := c.record(ctx, domain.ActionCheckout, in); err != nil {
		return c.compensate(ctx, OpCheckOut, in, err, StepDecrementHolding, StepRelease)
	}
	return nil
}

// CheckIn removes units from the project's holdings and returns them to the pool.
func (c *Coordinator) CheckIn(ctx context.Context, in TransferInput) (err error) {
	defer func() { c.finish(OpCheckIn, in, err) }()

	if in.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := c.authorize(ctx, in); err != nil {
		return err
	}

	if err := c.registry.DecrementHolding(ctx, in.ProjectID, in.PoolName, in.Quantity); err != nil {
		return err
	}
	if err := c.ledger.Release(ctx, in.PoolName, in.Quantity); err != nil {
		return c.compensate(ctx, OpCheckIn, in, err, StepIncrementHolding)
	}
	if err := c.record(ctx, domain.ActionCheckin, in); err != nil {
		return c.compensate(ctx, OpCheckIn, in, err, StepReserve, StepIncrementHolding)
	}
	return nil
}

func (c *Coordinator) authorize(ctx context.Context, in TransferInput) error {
	project, err := c.registry.GetProject(ctx, in.ProjectID)
	if err != nil {
		return err
	}
	if !project.HasMember(in.UserID) {
		return domain.ErrNotMember
	}
	return nil
}

func (c *Coordinator) record(ctx context.Context, action domain.LedgerAction, in TransferInput) error {
	event := domain.LedgerEvent{
		PoolName:  in.PoolName,
		Action:    action,
		ProjectID: in.ProjectID,
		UserID:    in.UserID,
		Quantity:  in.Quantity,
		Timestamp: c.clock.Now(),
	}
	return c.withRetry(ctx, func(ctx context.Context) error {
		_, err := c.ledger.RecordEvent(ctx, event)
		return err
	})
}

// compensate undoes steps in order. It runs detached from ctx cancellation so
// an abandoned request still gives back what it took. When every step is
// confirmed the original cause is returned; otherwise an
// InconsistentStateError naming the unconfirmed step.
func (c *Coordinator) compensate(ctx context.Context, op string, in TransferInput, cause error, steps ...string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	for _, step := range steps {
		err := c.withRetry(cctx, func(ctx context.Context) error {
			return c.undo(ctx, step, in)
		})
		if err != nil {
			c.recorder.ObserveCompensation(step, "failed")
			return &domain.InconsistentStateError{
				Op:        op,
				Step:      step,
				ProjectID: in.ProjectID,
				PoolName:  in.PoolName,
				Quantity:  in.Quantity,
				Err:       fmt.Errorf("%w (after %v)", err, cause),
			}
		}
		c.recorder.ObserveCompensation(step, "ok")
	}

	c.log.Warn().
		Err(cause).
		Str("op", op).
		Str("project_id", in.ProjectID).
		Str("pool", in.PoolName).
		Int("qty", in.Quantity).
		Strs("compensated", steps).
		Msg("partial update rolled back")
	return fmt.Errorf("%s: %w", op, cause)
}

func (c *Coordinator) undo(ctx context.Context, step string, in TransferInput) error {
	switch step {
	case StepRelease:
		return c.ledger.Release(ctx, in.PoolName, in.Quantity)
	case StepReserve:
		return c.ledger.Reserve(ctx, in.PoolName, in.Quantity)
	case StepIncrementHolding:
		return c.registry.IncrementHolding(ctx, in.ProjectID, in.PoolName, in.Quantity)
	case StepDecrementHolding:
		return c.registry.DecrementHolding(ctx, in.ProjectID, in.PoolName, in.Quantity)
	default:
		return fmt.Errorf("unknown compensation step %q", step)
	}
}

// withRetry retries fn while it reports storage unavailability.
func (c *Coordinator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(c.attempts-1, retry.WithCappedDuration(maxCompensationDelay, retry.NewExponential(c.backoff)))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && errors.Is(err, domain.ErrStorageUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Coordinator) finish(op string, in TransferInput, err error) {
	if err == nil {
		c.recorder.ObserveOperation(op, OutcomeSuccess)
		return
	}
	kind := domain.KindOf(err)
	c.recorder.ObserveOperation(op, string(kind))
	if kind == domain.KindInconsistentState {
		c.log.Error().
			Err(err).
			Str("op", op).
			Str("project_id", in.ProjectID).
			Str("pool", in.PoolName).
			Int("qty", in.Quantity).
			Str("user_id", in.UserID).
			Msg("manual reconciliation required")
	}
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string)    {}
func (noopRecorder) ObserveCompensation(string, string) {}
