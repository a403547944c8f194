package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus is the operational execution state of a ride, advanced by the
// assigned driver (or by an explicit no-show/cancel call).
type RideStatus string

const (
	RideStatusPending        RideStatus = "pending"
	RideStatusAssigned       RideStatus = "assigned"
	RideStatusStarted        RideStatus = "started"
	RideStatusPickedUp       RideStatus = "picked_up"
	RideStatusInProgress     RideStatus = "in_progress"
	RideStatusCompleted      RideStatus = "completed"
	RideStatusCancelled      RideStatus = "cancelled"
	RideStatusNoShow         RideStatus = "no_show"
	RideStatusReturnStarted  RideStatus = "return_started"
	RideStatusReturnPickedUp RideStatus = "return_picked_up"
	RideStatusReturnComplete RideStatus = "return_completed"
)

// ApprovalStatus is the super-admin triage state. It gates provider
// assignment: a provider can only be attached to an approved ride.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDeclined ApprovalStatus = "declined"
)

// ProviderStatus is the transportation provider's own accept/decline state.
// Only meaningful once a provider has been attached to the ride.
type ProviderStatus string

const (
	ProviderPending  ProviderStatus = "pending"
	ProviderAccepted ProviderStatus = "accepted"
	ProviderDeclined ProviderStatus = "declined"
)

// RecurrenceFrequency describes how a recurring ride template repeats.
type RecurrenceFrequency string

const (
	RecurrenceNone              RecurrenceFrequency = "none"
	RecurrenceDaily             RecurrenceFrequency = "daily"
	RecurrenceWeekly            RecurrenceFrequency = "weekly"
	RecurrenceMultipleTimesWeek RecurrenceFrequency = "multiple_times_week"
)

// Recurrence is the descriptor consumed once by the expander at creation
// time. It is retained on the originating template for audit only; the live
// state machine never re-reads it.
type Recurrence struct {
	Frequency RecurrenceFrequency `json:"frequency" db:"recurrence_frequency"`
	Weekdays  []time.Weekday      `json:"weekdays,omitempty" db:"recurrence_weekdays"`
	StartDate time.Time           `json:"start_date" db:"recurrence_start_date"`
	EndDate   *time.Time          `json:"end_date,omitempty" db:"recurrence_end_date"`
	TotalDays int                 `json:"total_days,omitempty" db:"recurrence_total_days"`
}

// Ride is the aggregate root: one transportation request, outbound leg plus
// optional return leg. The status triad (Status, SuperAdminStatus,
// ProviderStatus) jointly determines what the ride may do next; it is
// mutated exclusively through the rides service.
type Ride struct {
	ID       uuid.UUID `json:"id" db:"id"`
	TripCode string    `json:"trip_code" db:"trip_code"`

	MemberID   uuid.UUID  `json:"member_id" db:"member_id"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty" db:"provider_id"`
	DriverID   *uuid.UUID `json:"driver_id,omitempty" db:"driver_id"`

	Status           RideStatus     `json:"status" db:"status"`
	SuperAdminStatus ApprovalStatus `json:"super_admin_status" db:"super_admin_status"`
	ProviderStatus   ProviderStatus `json:"provider_status" db:"provider_status"`

	PickupAddress       string     `json:"pickup_address" db:"pickup_address"`
	DropoffAddress      string     `json:"dropoff_address" db:"dropoff_address"`
	PharmacyStop        *string    `json:"pharmacy_stop,omitempty" db:"pharmacy_stop"`
	ScheduledPickupTime time.Time  `json:"scheduled_pickup_time" db:"scheduled_pickup_time"`
	AppointmentTime     *time.Time `json:"appointment_time,omitempty" db:"appointment_time"`
	Notes               *string    `json:"notes,omitempty" db:"notes"`

	PaymentMethod        PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus        PaymentStatus `json:"payment_status" db:"payment_status"`
	Cost                 float64       `json:"cost" db:"cost"`
	ProviderFee          *float64      `json:"provider_fee,omitempty" db:"provider_fee"`
	DriverEarnings       *float64      `json:"driver_earnings,omitempty" db:"driver_earnings"`
	InsuranceClaimAmount *float64      `json:"insurance_claim_amount,omitempty" db:"insurance_claim_amount"`

	IsReturnTrip     bool       `json:"is_return_trip" db:"is_return_trip"`
	ReturnPickupTBA  bool       `json:"return_pickup_tba" db:"return_pickup_tba"`
	ReturnPickupTime *time.Time `json:"return_pickup_time,omitempty" db:"return_pickup_time"`

	RecurrenceID *uuid.UUID  `json:"recurrence_id,omitempty" db:"recurrence_id"`
	Recurrence   *Recurrence `json:"recurrence,omitempty"`

	DeclineReason *string `json:"decline_reason,omitempty" db:"decline_reason"`
	CancelReason  *string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	AssignedAt  *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty" db:"picked_up_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StatusTriad is an immutable snapshot of the three status fields, recorded
// on both sides of every history entry.
type StatusTriad struct {
	Status           RideStatus     `json:"status"`
	SuperAdminStatus ApprovalStatus `json:"super_admin_status"`
	ProviderStatus   ProviderStatus `json:"provider_status"`
}

// Triad returns the ride's current status triad.
func (r *Ride) Triad() StatusTriad {
	return StatusTriad{
		Status:           r.Status,
		SuperAdminStatus: r.SuperAdminStatus,
		ProviderStatus:   r.ProviderStatus,
	}
}

// ReturnLegPossible reports whether a return leg was pre-provisioned or
// requested for this ride.
func (r *Ride) ReturnLegPossible() bool {
	return r.IsReturnTrip || r.ReturnPickupTBA || r.ReturnPickupTime != nil
}

// IsTerminal reports whether the ride reached a state from which no further
// party or status mutation is legal. Declines are terminal wholesale.
func (r *Ride) IsTerminal() bool {
	if r.SuperAdminStatus == ApprovalDeclined || r.ProviderStatus == ProviderDeclined {
		return true
	}
	switch r.Status {
	case RideStatusCancelled, RideStatusNoShow, RideStatusReturnComplete:
		return true
	case RideStatusCompleted:
		// A completed outbound leg stays open for a return request.
		return !r.ReturnLegPossible()
	}
	return false
}

// HistoryEntry is one row of the append-only status history ledger. Entries
// are written in the same transaction as the ride update and never mutated
// afterwards; Seq is monotonic per ride and its order is the authoritative
// transition order.
type HistoryEntry struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	RideID    uuid.UUID   `json:"ride_id" db:"ride_id"`
	Seq       int64       `json:"seq" db:"seq"`
	FromTriad StatusTriad `json:"from" db:"from_triad"`
	ToTriad   StatusTriad `json:"to" db:"to_triad"`
	ActorID   uuid.UUID   `json:"actor_id" db:"actor_id"`
	ActorRole UserRole    `json:"actor_role" db:"actor_role"`
	Reason    *string     `json:"reason,omitempty" db:"reason"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// CreateRideRequest is the member-facing (or call-agent-facing) creation
// payload. When Recurrence is present the response carries the full
// expanded set of ride instances.
type CreateRideRequest struct {
	// MemberID is honored only when a call agent books on a member's
	// behalf; members always book for themselves.
	MemberID            *uuid.UUID    `json:"member_id,omitempty"`
	PickupAddress       string        `json:"pickup_address" binding:"required,min=5,max=500"`
	DropoffAddress      string        `json:"dropoff_address" binding:"required,min=5,max=500"`
	PharmacyStop        *string       `json:"pharmacy_stop,omitempty" binding:"omitempty,max=500"`
	ScheduledPickupTime time.Time     `json:"scheduled_pickup_time" binding:"required"`
	AppointmentTime     *time.Time    `json:"appointment_time,omitempty"`
	PaymentMethod       PaymentMethod `json:"payment_method" binding:"required,payment_method"`
	Cost                float64       `json:"cost" binding:"omitempty,gte=0"`
	Notes               *string       `json:"notes,omitempty" binding:"omitempty,max=1000"`
	IsReturnTrip        bool          `json:"is_return_trip,omitempty"`
	ReturnPickupTime    *time.Time    `json:"return_pickup_time,omitempty"`
	Recurrence          *Recurrence   `json:"recurrence,omitempty"`
}

// TransitionRequest is the generic single-field transition payload consumed
// by the transition endpoint.
type TransitionRequest struct {
	Field  string `json:"field" binding:"required,oneof=status super_admin_status provider_status"`
	Value  string `json:"value" binding:"required"`
	Reason string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// ClaimProviderRequest attaches a provider to a pending ride.
type ClaimProviderRequest struct {
	ProviderID uuid.UUID `json:"provider_id" binding:"required"`
}

// ClaimDriverRequest attaches a driver to an awaiting ride.
type ClaimDriverRequest struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

// ReturnRequest activates the return leg of a completed outbound ride.
// Either PickupTime is set or TBA is true.
type ReturnRequest struct {
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	TBA        bool       `json:"tba,omitempty"`
}

// RideFilter narrows list queries. Nil fields are ignored.
type RideFilter struct {
	Status           *RideStatus     `form:"status" binding:"omitempty,ride_status"`
	SuperAdminStatus *ApprovalStatus `form:"super_admin_status"`
	ProviderStatus   *ProviderStatus `form:"provider_status"`
	MemberID         *uuid.UUID      `form:"member_id"`
	ProviderID       *uuid.UUID      `form:"provider_id"`
	DriverID         *uuid.UUID      `form:"driver_id"`
	From             *time.Time      `form:"from" time_format:"2006-01-02"`
	To               *time.Time      `form:"to" time_format:"2006-01-02"`
}
