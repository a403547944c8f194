package rides

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/medtransit/nemt-scheduler/pkg/eventbus"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// Error definitions for the rides service
var (
	ErrRideNotFound       = errors.New("ride not found")
	ErrAlreadyClaimed     = errors.New("ride already claimed")
	ErrStaleState         = errors.New("ride state changed since read")
	ErrPermissionDenied   = errors.New("actor not authorized for this transition")
	ErrIllegalTransition  = errors.New("transition not reachable from current state")
	ErrInvariantViolation = errors.New("transition would violate a ride invariant")
	ErrReasonRequired     = errors.New("a non-empty reason is required")
	ErrNoShowTooEarly     = errors.New("no-show window has not elapsed")
	ErrReturnNotAvailable = errors.New("return leg not available for this ride")
)

// TransitionParams describes one conditional write. Expected is the triad
// the caller read; the update only commits if the row still matches it.
type TransitionParams struct {
	RideID   uuid.UUID
	Expected models.StatusTriad
	Next     models.StatusTriad

	ActorID   uuid.UUID
	ActorRole models.UserRole
	Reason    string

	// Optional column writes applied with the triad in the same UPDATE.
	DeclineReason    *string
	CancelReason     *string
	ReturnPickupTBA  *bool
	ReturnPickupTime *time.Time
	ProviderFee      *float64
	DriverEarnings   *float64
	InsuranceClaim   *float64
	PaymentStatus    *models.PaymentStatus
	StampAt          time.Time
}

// ClaimProviderParams is the compound provider claim: approve the ride and
// attach the provider in one conditional write.
type ClaimProviderParams struct {
	RideID     uuid.UUID
	ProviderID uuid.UUID
	ActorID    uuid.UUID
}

// ClaimDriverParams is the compound driver claim: accept on behalf of the
// provider and attach the driver in one conditional write.
type ClaimDriverParams struct {
	RideID     uuid.UUID
	ProviderID uuid.UUID
	DriverID   uuid.UUID
	ActorID    uuid.UUID
}

// RepositoryInterface defines the persistence operations the service needs.
// This enables mocking in tests.
type RepositoryInterface interface {
	CreateRide(ctx context.Context, ride *models.Ride) error
	CreateRides(ctx context.Context, rec *models.Recurrence, rides []*models.Ride) error
	GetRideByID(ctx context.Context, id uuid.UUID) (*models.Ride, error)
	ListRides(ctx context.Context, filter *models.RideFilter, limit, offset int) ([]*models.Ride, int64, error)
	GetHistory(ctx context.Context, rideID uuid.UUID) ([]models.HistoryEntry, error)

	// ApplyTransition commits Next and appends a history entry in one
	// transaction, guarded by Expected. Returns ErrStaleState when the
	// guard no longer matches.
	ApplyTransition(ctx context.Context, params TransitionParams) (*models.Ride, error)

	// ClaimProvider and ClaimDriver are the broker writes. They return
	// ErrAlreadyClaimed when a concurrent caller won the race.
	ClaimProvider(ctx context.Context, params ClaimProviderParams) (*models.Ride, error)
	ClaimDriver(ctx context.Context, params ClaimDriverParams) (*models.Ride, error)
}

// ServiceInterface defines the service operations the handler depends on.
// This enables mocking in handler tests.
type ServiceInterface interface {
	CreateRide(ctx context.Context, memberID uuid.UUID, req *models.CreateRideRequest) ([]*models.Ride, error)
	GetRide(ctx context.Context, actor Actor, id uuid.UUID) (*models.Ride, error)
	ListRides(ctx context.Context, actor Actor, filter *models.RideFilter, limit, offset int) ([]*models.Ride, int64, error)
	GetHistory(ctx context.Context, actor Actor, rideID uuid.UUID) ([]models.HistoryEntry, error)
	AttemptTransition(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.TransitionRequest) (*models.Ride, error)
	ClaimProviderAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, providerID uuid.UUID) (*models.Ride, error)
	ClaimDriverAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, driverID uuid.UUID) (*models.Ride, error)
	RequestReturn(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.ReturnRequest) (*models.Ride, error)
}

// EventPublisher publishes domain events after durable commit. Satisfied by
// *eventbus.Bus; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// validateTriad checks the cross-field invariants against a proposed
// post-state. It is called with the full post-state so rejection is
// wholesale, never partial.
func validateTriad(ride *models.Ride, next models.StatusTriad, provider, driver *uuid.UUID) error {
	// provider must be attached once provider_status moved off pending
	if next.ProviderStatus != models.ProviderPending && provider == nil {
		return ErrInvariantViolation
	}

	// driver must be attached for any driven state
	switch next.Status {
	case models.RideStatusAssigned, models.RideStatusStarted, models.RideStatusPickedUp,
		models.RideStatusInProgress, models.RideStatusCompleted,
		models.RideStatusReturnStarted, models.RideStatusReturnPickedUp, models.RideStatusReturnComplete:
		if driver == nil {
			return ErrInvariantViolation
		}
	}

	// provider acceptance requires super-admin approval first
	if next.ProviderStatus != models.ProviderPending && next.SuperAdminStatus != models.ApprovalApproved {
		return ErrInvariantViolation
	}

	// operational status leaves pending only after provider acceptance
	if next.Status != models.RideStatusPending && next.Status != models.RideStatusCancelled &&
		next.ProviderStatus != models.ProviderAccepted {
		return ErrInvariantViolation
	}

	// declined rides are terminal
	if ride.SuperAdminStatus == models.ApprovalDeclined || ride.ProviderStatus == models.ProviderDeclined {
		return ErrInvariantViolation
	}

	// return-leg states require a provisioned or requested return leg
	switch next.Status {
	case models.RideStatusReturnStarted, models.RideStatusReturnPickedUp, models.RideStatusReturnComplete:
		if !ride.ReturnLegPossible() {
			return ErrInvariantViolation
		}
	}

	return nil
}
