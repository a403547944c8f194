package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// ==================== User Tests ====================

func TestUserRole_Valid(t *testing.T) {
	tests := []struct {
		name  string
		role  UserRole
		valid bool
	}{
		{"member role", RoleMember, true},
		{"driver role", RoleDriver, true},
		{"provider admin role", RoleProviderAdmin, true},
		{"super admin role", RoleSuperAdmin, true},
		{"empty role", UserRole(""), false},
		{"unknown role", UserRole("dispatcher"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

// ==================== Ride Tests ====================

func TestRide_Triad(t *testing.T) {
	ride := Ride{
		Status:           RideStatusStarted,
		SuperAdminStatus: ApprovalApproved,
		ProviderStatus:   ProviderAccepted,
	}

	triad := ride.Triad()
	if triad.Status != RideStatusStarted {
		t.Errorf("Status = %s, want %s", triad.Status, RideStatusStarted)
	}
	if triad.SuperAdminStatus != ApprovalApproved {
		t.Errorf("SuperAdminStatus = %s, want %s", triad.SuperAdminStatus, ApprovalApproved)
	}
	if triad.ProviderStatus != ProviderAccepted {
		t.Errorf("ProviderStatus = %s, want %s", triad.ProviderStatus, ProviderAccepted)
	}
}

func TestRide_ReturnLegPossible(t *testing.T) {
	pickupTime := time.Now().Add(4 * time.Hour)

	tests := []struct {
		name     string
		ride     Ride
		expected bool
	}{
		{"plain one-way ride", Ride{}, false},
		{"pre-provisioned round trip", Ride{IsReturnTrip: true}, true},
		{"will-call return", Ride{ReturnPickupTBA: true}, true},
		{"scheduled return pickup", Ride{ReturnPickupTime: &pickupTime}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ride.ReturnLegPossible(); got != tt.expected {
				t.Errorf("ReturnLegPossible() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRide_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		ride     Ride
		terminal bool
	}{
		{
			name:     "pending ride",
			ride:     Ride{Status: RideStatusPending, SuperAdminStatus: ApprovalPending, ProviderStatus: ProviderPending},
			terminal: false,
		},
		{
			name:     "in progress",
			ride:     Ride{Status: RideStatusInProgress, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderAccepted},
			terminal: false,
		},
		{
			name:     "cancelled",
			ride:     Ride{Status: RideStatusCancelled, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderAccepted},
			terminal: true,
		},
		{
			name:     "no show",
			ride:     Ride{Status: RideStatusNoShow, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderAccepted},
			terminal: true,
		},
		{
			name:     "return completed",
			ride:     Ride{Status: RideStatusReturnComplete, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderAccepted},
			terminal: true,
		},
		{
			name:     "super admin declined",
			ride:     Ride{Status: RideStatusPending, SuperAdminStatus: ApprovalDeclined, ProviderStatus: ProviderPending},
			terminal: true,
		},
		{
			name:     "provider declined",
			ride:     Ride{Status: RideStatusPending, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderDeclined},
			terminal: true,
		},
		{
			name:     "completed without return leg",
			ride:     Ride{Status: RideStatusCompleted, SuperAdminStatus: ApprovalApproved, ProviderStatus: ProviderAccepted},
			terminal: true,
		},
		{
			name: "completed round trip stays open",
			ride: Ride{
				Status:           RideStatusCompleted,
				SuperAdminStatus: ApprovalApproved,
				ProviderStatus:   ProviderAccepted,
				IsReturnTrip:     true,
			},
			terminal: false,
		},
		{
			name: "completed with will-call return stays open",
			ride: Ride{
				Status:           RideStatusCompleted,
				SuperAdminStatus: ApprovalApproved,
				ProviderStatus:   ProviderAccepted,
				ReturnPickupTBA:  true,
			},
			terminal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ride.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestRide_JSON_Marshaling(t *testing.T) {
	rideID := uuid.New()
	memberID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	ride := Ride{
		ID:                  rideID,
		TripCode:            "NEMT-AB12-CD34",
		MemberID:            memberID,
		Status:              RideStatusPending,
		SuperAdminStatus:    ApprovalPending,
		ProviderStatus:      ProviderPending,
		PickupAddress:       "12 Elm St, Springfield",
		DropoffAddress:      "400 Clinic Dr, Springfield",
		ScheduledPickupTime: now.Add(24 * time.Hour),
		PaymentMethod:       PaymentMethodMedicaid,
		PaymentStatus:       PaymentStatusUnbilled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	data, err := json.Marshal(ride)
	if err != nil {
		t.Fatalf("Failed to marshal ride: %v", err)
	}

	var decoded Ride
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal ride: %v", err)
	}

	if decoded.ID != rideID {
		t.Errorf("ID = %s, want %s", decoded.ID, rideID)
	}
	if decoded.TripCode != "NEMT-AB12-CD34" {
		t.Errorf("TripCode = %s, want NEMT-AB12-CD34", decoded.TripCode)
	}
	if decoded.Status != RideStatusPending {
		t.Errorf("Status = %s, want %s", decoded.Status, RideStatusPending)
	}
	if decoded.DriverID != nil {
		t.Error("DriverID should be nil for a pending ride")
	}
}

// ==================== History Tests ====================

func TestHistoryEntry_JSON_Marshaling(t *testing.T) {
	entryID := uuid.New()
	rideID := uuid.New()
	actorID := uuid.New()
	reason := "member not at pickup"
	now := time.Now().UTC().Truncate(time.Second)

	entry := HistoryEntry{
		ID:     entryID,
		RideID: rideID,
		Seq:    3,
		FromTriad: StatusTriad{
			Status:           RideStatusStarted,
			SuperAdminStatus: ApprovalApproved,
			ProviderStatus:   ProviderAccepted,
		},
		ToTriad: StatusTriad{
			Status:           RideStatusNoShow,
			SuperAdminStatus: ApprovalApproved,
			ProviderStatus:   ProviderAccepted,
		},
		ActorID:   actorID,
		ActorRole: RoleDriver,
		Reason:    &reason,
		CreatedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Failed to marshal history entry: %v", err)
	}

	var decoded HistoryEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal history entry: %v", err)
	}

	if decoded.Seq != 3 {
		t.Errorf("Seq = %d, want 3", decoded.Seq)
	}
	if decoded.FromTriad.Status != RideStatusStarted {
		t.Errorf("FromTriad.Status = %s, want %s", decoded.FromTriad.Status, RideStatusStarted)
	}
	if decoded.ToTriad.Status != RideStatusNoShow {
		t.Errorf("ToTriad.Status = %s, want %s", decoded.ToTriad.Status, RideStatusNoShow)
	}
	if decoded.Reason == nil || *decoded.Reason != reason {
		t.Errorf("Reason = %v, want %s", decoded.Reason, reason)
	}
}

// ==================== Request Tests ====================

func TestTransitionRequest_JSON_Unmarshaling(t *testing.T) {
	payload := `{"field":"status","value":"cancelled","reason":"appointment rescheduled"}`

	var req TransitionRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("Failed to unmarshal transition request: %v", err)
	}

	if req.Field != "status" {
		t.Errorf("Field = %s, want status", req.Field)
	}
	if req.Value != "cancelled" {
		t.Errorf("Value = %s, want cancelled", req.Value)
	}
	if req.Reason != "appointment rescheduled" {
		t.Errorf("Reason = %s, want appointment rescheduled", req.Reason)
	}
}

func TestReturnRequest_JSON_Unmarshaling(t *testing.T) {
	t.Run("will-call", func(t *testing.T) {
		var req ReturnRequest
		if err := json.Unmarshal([]byte(`{"tba":true}`), &req); err != nil {
			t.Fatalf("Failed to unmarshal return request: %v", err)
		}
		if !req.TBA {
			t.Error("TBA should be true")
		}
		if req.PickupTime != nil {
			t.Error("PickupTime should be nil")
		}
	})

	t.Run("scheduled pickup", func(t *testing.T) {
		var req ReturnRequest
		if err := json.Unmarshal([]byte(`{"pickup_time":"2026-02-03T15:30:00Z"}`), &req); err != nil {
			t.Fatalf("Failed to unmarshal return request: %v", err)
		}
		if req.TBA {
			t.Error("TBA should be false")
		}
		if req.PickupTime == nil {
			t.Fatal("PickupTime should be set")
		}
		if req.PickupTime.Hour() != 15 {
			t.Errorf("PickupTime hour = %d, want 15", req.PickupTime.Hour())
		}
	})
}

func TestRecurrence_JSON_Unmarshaling(t *testing.T) {
	payload := `{
		"frequency": "multiple_times_week",
		"weekdays": [1, 3, 5],
		"start_date": "2026-03-02T00:00:00Z",
		"end_date": "2026-03-29T00:00:00Z"
	}`

	var rec Recurrence
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		t.Fatalf("Failed to unmarshal recurrence: %v", err)
	}

	if rec.Frequency != RecurrenceMultipleTimesWeek {
		t.Errorf("Frequency = %s, want %s", rec.Frequency, RecurrenceMultipleTimesWeek)
	}
	if len(rec.Weekdays) != 3 {
		t.Fatalf("Weekdays length = %d, want 3", len(rec.Weekdays))
	}
	if rec.Weekdays[0] != time.Monday || rec.Weekdays[1] != time.Wednesday || rec.Weekdays[2] != time.Friday {
		t.Errorf("Weekdays = %v, want [Monday Wednesday Friday]", rec.Weekdays)
	}
	if rec.EndDate == nil {
		t.Fatal("EndDate should be set")
	}
}
