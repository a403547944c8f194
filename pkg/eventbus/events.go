package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// RideCreatedData is emitted once per ride row after the booking commits.
// Recurring bookings emit one event per expanded instance.
type RideCreatedData struct {
	RideID              uuid.UUID  `json:"ride_id"`
	TripCode            string     `json:"trip_code"`
	MemberID            uuid.UUID  `json:"member_id"`
	PickupAddress       string     `json:"pickup_address"`
	DropoffAddress      string     `json:"dropoff_address"`
	ScheduledPickupTime time.Time  `json:"scheduled_pickup_time"`
	AppointmentTime     *time.Time `json:"appointment_time,omitempty"`
	RecurrenceID        *uuid.UUID `json:"recurrence_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// RideTransitionedData is emitted after any status-field change commits,
// whether it came from a direct transition request or a claim side effect.
type RideTransitionedData struct {
	RideID    uuid.UUID `json:"ride_id"`
	TripCode  string    `json:"trip_code"`
	Field     string    `json:"field"` // status, super_admin_status or provider_status
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   uuid.UUID `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Reason    *string   `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProviderClaimedData is emitted when a provider wins the claim on a ride.
type ProviderClaimedData struct {
	RideID     uuid.UUID `json:"ride_id"`
	TripCode   string    `json:"trip_code"`
	ProviderID uuid.UUID `json:"provider_id"`
	ClaimedBy  uuid.UUID `json:"claimed_by"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// DriverClaimedData is emitted when a driver assignment commits. The ride's
// status is "assigned" from this point on.
type DriverClaimedData struct {
	RideID     uuid.UUID `json:"ride_id"`
	TripCode   string    `json:"trip_code"`
	ProviderID uuid.UUID `json:"provider_id"`
	DriverID   uuid.UUID `json:"driver_id"`
	AssignedBy uuid.UUID `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ReturnRequestedData is emitted when a member asks for the return leg of a
// completed ride, either with a concrete pickup time or as will-call.
type ReturnRequestedData struct {
	RideID           uuid.UUID  `json:"ride_id"`
	TripCode         string     `json:"trip_code"`
	MemberID         uuid.UUID  `json:"member_id"`
	ReturnPickupTime *time.Time `json:"return_pickup_time,omitempty"`
	ReturnPickupTBA  bool       `json:"return_pickup_tba"`
	RequestedAt      time.Time  `json:"requested_at"`
}
