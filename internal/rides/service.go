package rides

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medtransit/nemt-scheduler/pkg/common"
	"github.com/medtransit/nemt-scheduler/pkg/eventbus"
	"github.com/medtransit/nemt-scheduler/pkg/logger"
	"github.com/medtransit/nemt-scheduler/pkg/models"
	"github.com/medtransit/nemt-scheduler/pkg/resilience"
)

const (
	// Share of the booked cost owed to the provider and driver once the
	// outbound leg completes. Billing reconciles the exact amounts later.
	providerFeeRate = 0.80
	driverShareRate = 0.55

	defaultNoShowGrace = 30 * time.Minute
)

// Service owns the ride lifecycle: booking (with recurrence expansion),
// claim brokering, status transitions and return-leg activation. All state
// changes go through guarded repository writes; the service never holds
// locks of its own.
type Service struct {
	repo        RepositoryInterface
	eventBus    EventPublisher
	noShowGrace time.Duration
	now         func() time.Time
	publishWG   sync.WaitGroup
}

// NewService creates a new rides service.
func NewService(repo RepositoryInterface, noShowGrace time.Duration) *Service {
	if noShowGrace <= 0 {
		noShowGrace = defaultNoShowGrace
	}
	return &Service{
		repo:        repo,
		noShowGrace: noShowGrace,
		now:         time.Now,
	}
}

// SetEventBus sets the NATS event bus for publishing ride events.
func (s *Service) SetEventBus(bus EventPublisher) {
	s.eventBus = bus
}

// ========================================
// BOOKING
// ========================================

// CreateRide books a ride for the member. When the request carries a
// recurrence descriptor the whole expanded set is inserted atomically and
// returned; otherwise the slice holds the single ride.
func (s *Service) CreateRide(ctx context.Context, memberID uuid.UUID, req *models.CreateRideRequest) ([]*models.Ride, error) {
	if req.AppointmentTime != nil && req.AppointmentTime.Before(req.ScheduledPickupTime) {
		return nil, common.NewValidationError("appointment time must not be before scheduled pickup")
	}
	if req.ReturnPickupTime != nil && !req.ReturnPickupTime.After(req.ScheduledPickupTime) {
		return nil, common.NewValidationError("return pickup time must be after scheduled pickup")
	}

	if req.Recurrence == nil || req.Recurrence.Frequency == models.RecurrenceNone {
		ride := s.newRideFromRequest(memberID, req, req.ScheduledPickupTime)
		if err := s.repo.CreateRide(ctx, ride); err != nil {
			return nil, common.NewInternalError("failed to create ride", err)
		}
		s.publishCreated(ride)
		return []*models.Ride{ride}, nil
	}

	switch req.Recurrence.Frequency {
	case models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceMultipleTimesWeek:
	default:
		return nil, common.NewValidationError("unknown recurrence frequency")
	}

	// An end date before the start date schedules nothing; that is not an
	// error, the booking simply has no occurrences.
	dates := expandDates(*req.Recurrence)
	instances := make([]*models.Ride, 0, len(dates))
	for _, date := range dates {
		ride := s.newRideFromRequest(memberID, req, onDate(req.ScheduledPickupTime, date))
		if req.AppointmentTime != nil {
			appt := onDate(*req.AppointmentTime, date)
			ride.AppointmentTime = &appt
		}
		if req.ReturnPickupTime != nil {
			ret := onDate(*req.ReturnPickupTime, date)
			ride.ReturnPickupTime = &ret
		}
		instances = append(instances, ride)
	}

	if err := s.repo.CreateRides(ctx, req.Recurrence, instances); err != nil {
		return nil, common.NewInternalError("failed to create recurring rides", err)
	}
	for _, ride := range instances {
		s.publishCreated(ride)
	}
	return instances, nil
}

func (s *Service) newRideFromRequest(memberID uuid.UUID, req *models.CreateRideRequest, pickupAt time.Time) *models.Ride {
	return &models.Ride{
		ID:                  uuid.New(),
		TripCode:            generateTripCode(),
		MemberID:            memberID,
		Status:              models.RideStatusPending,
		SuperAdminStatus:    models.ApprovalPending,
		ProviderStatus:      models.ProviderPending,
		PickupAddress:       req.PickupAddress,
		DropoffAddress:      req.DropoffAddress,
		PharmacyStop:        req.PharmacyStop,
		ScheduledPickupTime: pickupAt,
		AppointmentTime:     req.AppointmentTime,
		Notes:               req.Notes,
		PaymentMethod:       req.PaymentMethod,
		PaymentStatus:       models.PaymentStatusUnbilled,
		Cost:                req.Cost,
		IsReturnTrip:        req.IsReturnTrip,
		ReturnPickupTime:    req.ReturnPickupTime,
	}
}

// ========================================
// READS
// ========================================

// GetRide returns a single ride if the actor is allowed to see it.
func (s *Service) GetRide(ctx context.Context, actor Actor, id uuid.UUID) (*models.Ride, error) {
	ride, err := s.loadRide(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ride) {
		return nil, common.NewForbiddenError("not authorized for this ride", ErrPermissionDenied)
	}
	return ride, nil
}

// ListRides returns rides matching the filter, scoped to what the actor may
// see. Members see their own rides, drivers their assignments, provider
// admins their provider's rides; super admins see everything.
func (s *Service) ListRides(ctx context.Context, actor Actor, filter *models.RideFilter, limit, offset int) ([]*models.Ride, int64, error) {
	if filter == nil {
		filter = &models.RideFilter{}
	}
	switch actor.Role {
	case models.RoleMember:
		filter.MemberID = &actor.ID
	case models.RoleDriver:
		filter.DriverID = &actor.ID
	case models.RoleProviderAdmin:
		if actor.ProviderID == nil {
			return nil, 0, common.NewForbiddenError("provider admin has no provider", ErrPermissionDenied)
		}
		filter.ProviderID = actor.ProviderID
	case models.RoleSuperAdmin:
	default:
		return nil, 0, common.NewForbiddenError("unknown role", ErrPermissionDenied)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rideList, total, err := s.repo.ListRides(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalError("failed to list rides", err)
	}
	return rideList, total, nil
}

// GetHistory returns the append-only transition ledger for a ride, oldest
// first.
func (s *Service) GetHistory(ctx context.Context, actor Actor, rideID uuid.UUID) ([]models.HistoryEntry, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ride) {
		return nil, common.NewForbiddenError("not authorized for this ride", ErrPermissionDenied)
	}
	entries, err := s.repo.GetHistory(ctx, rideID)
	if err != nil {
		return nil, common.NewInternalError("failed to load ride history", err)
	}
	return entries, nil
}

// ========================================
// TRANSITIONS
// ========================================

// AttemptTransition applies a single-field status change after running the
// full gauntlet: terminality, role permission, party match, state-machine
// reachability, reason requirement, no-show window and the cross-field
// invariants. Rejection is wholesale; nothing is written on failure.
func (s *Service) AttemptTransition(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.TransitionRequest) (*models.Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.IsTerminal() {
		return nil, common.NewIllegalTransitionError("ride is in a terminal state", ErrIllegalTransition)
	}

	if !roleAllowed(fieldPermissions[req.Field], actor.Role) {
		return nil, common.NewForbiddenError(
			fmt.Sprintf("role %s may not change %s", actor.Role, req.Field), ErrPermissionDenied)
	}
	if err := checkPartyMatch(actor, ride, req.Field); err != nil {
		return nil, common.NewForbiddenError("actor is not a party to this ride", err)
	}

	next, err := buildNextTriad(ride, req.Field, req.Value)
	if err != nil {
		return nil, err
	}

	if req.Field == FieldStatus {
		if !roleAllowed(statusValuePermissions[next.Status], actor.Role) {
			return nil, common.NewForbiddenError(
				fmt.Sprintf("role %s may not set status %s", actor.Role, next.Status), ErrPermissionDenied)
		}
	}

	if reasonRequired(req.Field, next) && req.Reason == "" {
		return nil, common.NewValidationError("a reason is required for this transition")
	}

	now := s.now()
	if next.Status == models.RideStatusNoShow && ride.Status != models.RideStatusNoShow {
		earliest := ride.ScheduledPickupTime.Add(s.noShowGrace)
		if now.Before(earliest) {
			return nil, common.NewInvariantViolationError(
				fmt.Sprintf("no-show cannot be recorded before %s", earliest.Format(time.RFC3339)),
				ErrNoShowTooEarly)
		}
	}

	if err := validateTriad(ride, next, ride.ProviderID, ride.DriverID); err != nil {
		return nil, common.NewInvariantViolationError("transition would violate ride invariants", err)
	}

	params := TransitionParams{
		RideID:    rideID,
		Expected:  ride.Triad(),
		Next:      next,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Reason:    req.Reason,
		StampAt:   now,
	}
	applySideEffects(&params, ride, req)

	updated, err := s.repo.ApplyTransition(ctx, params)
	if err != nil {
		if errors.Is(err, ErrStaleState) {
			return nil, common.NewStaleStateError("ride state changed since read, retry", err)
		}
		if errors.Is(err, ErrRideNotFound) {
			return nil, common.NewNotFoundError("ride not found", err)
		}
		return nil, common.NewInternalError("failed to apply transition", err)
	}

	s.publishTransitioned(updated, req.Field, params.Expected, next, actor, req.Reason)
	return updated, nil
}

// buildNextTriad parses the requested value, checks reachability on the
// relevant state machine and returns the full proposed post-state.
func buildNextTriad(ride *models.Ride, field, value string) (models.StatusTriad, error) {
	next := ride.Triad()
	switch field {
	case FieldStatus:
		to := models.RideStatus(value)
		if !statusKnown(to) {
			return next, common.NewValidationError(fmt.Sprintf("unknown status value %q", value))
		}
		if !statusReachable(ride.Status, to) {
			return next, common.NewIllegalTransitionError(
				fmt.Sprintf("cannot move status from %s to %s", ride.Status, to), ErrIllegalTransition)
		}
		next.Status = to
	case FieldSuperAdminStatus:
		to := models.ApprovalStatus(value)
		if to != models.ApprovalApproved && to != models.ApprovalDeclined {
			return next, common.NewValidationError(fmt.Sprintf("unknown approval value %q", value))
		}
		if !approvalReachable(ride.SuperAdminStatus, to) {
			return next, common.NewIllegalTransitionError(
				fmt.Sprintf("cannot move super_admin_status from %s to %s", ride.SuperAdminStatus, to), ErrIllegalTransition)
		}
		next.SuperAdminStatus = to
	case FieldProviderStatus:
		to := models.ProviderStatus(value)
		if to != models.ProviderAccepted && to != models.ProviderDeclined {
			return next, common.NewValidationError(fmt.Sprintf("unknown provider status value %q", value))
		}
		if !providerReachable(ride.ProviderStatus, to) {
			return next, common.NewIllegalTransitionError(
				fmt.Sprintf("cannot move provider_status from %s to %s", ride.ProviderStatus, to), ErrIllegalTransition)
		}
		next.ProviderStatus = to
	default:
		return next, common.NewValidationError(fmt.Sprintf("unknown transition field %q", field))
	}
	return next, nil
}

func statusKnown(st models.RideStatus) bool {
	if _, ok := statusGraph[st]; ok {
		return true
	}
	switch st {
	case models.RideStatusCancelled, models.RideStatusNoShow, models.RideStatusReturnComplete:
		return true
	}
	return false
}

// applySideEffects attaches the column writes that ride along with specific
// transitions: decline and cancel reasons, and the completion economics.
func applySideEffects(params *TransitionParams, ride *models.Ride, req *models.TransitionRequest) {
	reason := req.Reason

	switch {
	case params.Next.SuperAdminStatus == models.ApprovalDeclined && ride.SuperAdminStatus != models.ApprovalDeclined:
		params.DeclineReason = &reason
	case params.Next.ProviderStatus == models.ProviderDeclined && ride.ProviderStatus != models.ProviderDeclined:
		params.DeclineReason = &reason
	case params.Next.Status == models.RideStatusCancelled && ride.Status != models.RideStatusCancelled:
		params.CancelReason = &reason
	}

	if params.Next.Status == models.RideStatusCompleted && ride.Status != models.RideStatusCompleted {
		fee := ride.Cost * providerFeeRate
		earnings := ride.Cost * driverShareRate
		billing := models.PaymentStatusPendingBilling
		params.ProviderFee = &fee
		params.DriverEarnings = &earnings
		params.PaymentStatus = &billing

		switch ride.PaymentMethod {
		case models.PaymentMethodInsurance, models.PaymentMethodMedicaid:
			claim := ride.Cost
			params.InsuranceClaim = &claim
		}
	}
}

// ========================================
// ASSIGNMENT BROKER
// ========================================

// ClaimProviderAssignment approves a pending ride and attaches the provider
// in one guarded write. At most one caller wins; losers get a conflict.
func (s *Service) ClaimProviderAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, providerID uuid.UUID) (*models.Ride, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, common.NewForbiddenError("only super admins assign providers", ErrPermissionDenied)
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.IsTerminal() {
		return nil, common.NewIllegalTransitionError("ride is in a terminal state", ErrIllegalTransition)
	}
	if ride.ProviderID != nil {
		return nil, common.NewConflictError("ride already has a provider", ErrAlreadyClaimed)
	}
	if ride.SuperAdminStatus != models.ApprovalPending {
		return nil, common.NewIllegalTransitionError(
			fmt.Sprintf("ride is already %s", ride.SuperAdminStatus), ErrIllegalTransition)
	}

	updated, err := s.repo.ClaimProvider(ctx, ClaimProviderParams{
		RideID:     rideID,
		ProviderID: providerID,
		ActorID:    actor.ID,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, common.NewConflictError("ride was claimed by another request", err)
		}
		return nil, common.NewInternalError("failed to claim provider assignment", err)
	}

	s.publishEvent(eventbus.SubjectProviderClaimed, eventbus.ProviderClaimedData{
		RideID:     updated.ID,
		TripCode:   updated.TripCode,
		ProviderID: providerID,
		ClaimedBy:  actor.ID,
		ClaimedAt:  s.now().UTC(),
	})
	return updated, nil
}

// ClaimDriverAssignment accepts the ride on behalf of the provider and
// attaches the driver in one guarded write. The ride moves to assigned.
func (s *Service) ClaimDriverAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, driverID uuid.UUID) (*models.Ride, error) {
	if actor.Role != models.RoleProviderAdmin {
		return nil, common.NewForbiddenError("only provider admins assign drivers", ErrPermissionDenied)
	}
	if actor.ProviderID == nil {
		return nil, common.NewForbiddenError("provider admin has no provider", ErrPermissionDenied)
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.IsTerminal() {
		return nil, common.NewIllegalTransitionError("ride is in a terminal state", ErrIllegalTransition)
	}
	if ride.ProviderID == nil {
		return nil, common.NewIllegalTransitionError("ride has no provider yet", ErrIllegalTransition)
	}
	if *ride.ProviderID != *actor.ProviderID {
		return nil, common.NewForbiddenError("ride belongs to another provider", ErrPermissionDenied)
	}
	if ride.DriverID != nil {
		return nil, common.NewConflictError("ride already has a driver", ErrAlreadyClaimed)
	}

	updated, err := s.repo.ClaimDriver(ctx, ClaimDriverParams{
		RideID:     rideID,
		ProviderID: *actor.ProviderID,
		DriverID:   driverID,
		ActorID:    actor.ID,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, common.NewConflictError("ride was claimed by another request", err)
		}
		return nil, common.NewInternalError("failed to claim driver assignment", err)
	}

	s.publishEvent(eventbus.SubjectDriverClaimed, eventbus.DriverClaimedData{
		RideID:     updated.ID,
		TripCode:   updated.TripCode,
		ProviderID: *actor.ProviderID,
		DriverID:   driverID,
		AssignedBy: actor.ID,
		AssignedAt: s.now().UTC(),
	})
	return updated, nil
}

// ========================================
// RETURN LEG
// ========================================

// RequestReturn activates the return leg of a completed outbound ride,
// either with a concrete pickup time or as will-call (TBA). The status does
// not change here; the assigned driver starts the return leg through the
// normal transition path.
func (s *Service) RequestReturn(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.ReturnRequest) (*models.Ride, error) {
	if actor.Role != models.RoleMember && actor.Role != models.RoleSuperAdmin {
		return nil, common.NewForbiddenError("only the member or a call agent may request a return", ErrPermissionDenied)
	}
	if req.PickupTime == nil && !req.TBA {
		return nil, common.NewValidationError("either pickup_time or tba must be set")
	}
	if req.PickupTime != nil && req.TBA {
		return nil, common.NewValidationError("pickup_time and tba are mutually exclusive")
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleMember && ride.MemberID != actor.ID {
		return nil, common.NewForbiddenError("not authorized for this ride", ErrPermissionDenied)
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, common.NewIllegalTransitionError("return leg requires a completed outbound leg", ErrReturnNotAvailable)
	}

	tba := req.TBA
	params := TransitionParams{
		RideID:           rideID,
		Expected:         ride.Triad(),
		Next:             ride.Triad(),
		ActorID:          actor.ID,
		ActorRole:        actor.Role,
		Reason:           "return leg requested",
		ReturnPickupTBA:  &tba,
		ReturnPickupTime: req.PickupTime,
		StampAt:          s.now(),
	}

	updated, err := s.repo.ApplyTransition(ctx, params)
	if err != nil {
		if errors.Is(err, ErrStaleState) {
			return nil, common.NewStaleStateError("ride state changed since read, retry", err)
		}
		return nil, common.NewInternalError("failed to request return leg", err)
	}

	s.publishEvent(eventbus.SubjectReturnRequested, eventbus.ReturnRequestedData{
		RideID:           updated.ID,
		TripCode:         updated.TripCode,
		MemberID:         updated.MemberID,
		ReturnPickupTime: req.PickupTime,
		ReturnPickupTBA:  tba,
		RequestedAt:      s.now().UTC(),
	})
	return updated, nil
}

// ========================================
// HELPERS
// ========================================

func (s *Service) loadRide(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.GetRideByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRideNotFound) {
			return nil, common.NewNotFoundError("ride not found", err)
		}
		return nil, common.NewInternalError("failed to load ride", err)
	}
	return ride, nil
}

func canView(actor Actor, ride *models.Ride) bool {
	switch actor.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleMember:
		return ride.MemberID == actor.ID
	case models.RoleDriver:
		return ride.DriverID != nil && *ride.DriverID == actor.ID
	case models.RoleProviderAdmin:
		return ride.ProviderID != nil && actor.ProviderID != nil && *ride.ProviderID == *actor.ProviderID
	}
	return false
}

// checkPartyMatch enforces that the actor is attached to the ride it is
// moving, over and above the role check.
func checkPartyMatch(actor Actor, ride *models.Ride, field string) error {
	switch field {
	case FieldProviderStatus:
		if ride.ProviderID == nil || actor.ProviderID == nil || *ride.ProviderID != *actor.ProviderID {
			return ErrPermissionDenied
		}
	case FieldStatus:
		switch actor.Role {
		case models.RoleDriver:
			if ride.DriverID == nil || *ride.DriverID != actor.ID {
				return ErrPermissionDenied
			}
		case models.RoleMember:
			if ride.MemberID != actor.ID {
				return ErrPermissionDenied
			}
		case models.RoleProviderAdmin:
			if ride.ProviderID == nil || actor.ProviderID == nil || *ride.ProviderID != *actor.ProviderID {
				return ErrPermissionDenied
			}
		}
	}
	return nil
}

func (s *Service) publishCreated(ride *models.Ride) {
	s.publishEvent(eventbus.SubjectRideCreated, eventbus.RideCreatedData{
		RideID:              ride.ID,
		TripCode:            ride.TripCode,
		MemberID:            ride.MemberID,
		PickupAddress:       ride.PickupAddress,
		DropoffAddress:      ride.DropoffAddress,
		ScheduledPickupTime: ride.ScheduledPickupTime,
		AppointmentTime:     ride.AppointmentTime,
		RecurrenceID:        ride.RecurrenceID,
		CreatedAt:           ride.CreatedAt,
	})
}

func (s *Service) publishTransitioned(ride *models.Ride, field string, from, to models.StatusTriad, actor Actor, reason string) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	s.publishEvent(eventbus.SubjectRideTransitioned, eventbus.RideTransitionedData{
		RideID:    ride.ID,
		TripCode:  ride.TripCode,
		Field:     field,
		From:      triadFieldValue(from, field),
		To:        triadFieldValue(to, field),
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Reason:    reasonPtr,
		Timestamp: s.now().UTC(),
	})
}

func triadFieldValue(triad models.StatusTriad, field string) string {
	switch field {
	case FieldSuperAdminStatus:
		return string(triad.SuperAdminStatus)
	case FieldProviderStatus:
		return string(triad.ProviderStatus)
	default:
		return string(triad.Status)
	}
}

// publishEvent publishes a ride event asynchronously. The state change
// already committed, so delivery failures never surface to the caller;
// instead each publish is retried with backoff, and the JetStream message ID
// dedupes any redelivery. DrainEvents waits out in-flight publishes at
// shutdown.
func (s *Service) publishEvent(subject string, data interface{}) {
	if s.eventBus == nil {
		return
	}
	evt, err := eventbus.NewEvent(subject, "nemt-scheduler", data)
	if err != nil {
		logger.Warn("failed to create ride event", zap.String("subject", subject), zap.Error(err))
		return
	}
	s.publishWG.Add(1)
	go func() {
		defer s.publishWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := resilience.RetryWithName(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (interface{}, error) {
			return nil, s.eventBus.Publish(ctx, subject, evt)
		}, "eventbus.publish")
		if err != nil {
			logger.Warn("failed to publish ride event after retries",
				zap.String("subject", subject),
				zap.String("event_id", evt.ID),
				zap.Error(err),
			)
		}
	}()
}

// DrainEvents blocks until all in-flight event publishes finish or the
// context expires. Call during shutdown, before closing the event bus.
func (s *Service) DrainEvents(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.publishWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// generateTripCode creates a human-friendly trip code for phone support.
func generateTripCode() string {
	const chars = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	code := make([]byte, 8)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}
	return fmt.Sprintf("NEMT-%s-%s", string(code[:4]), string(code[4:]))
}
