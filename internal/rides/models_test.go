package rides

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

func TestStatusReachable(t *testing.T) {
	tests := []struct {
		name      string
		from      models.RideStatus
		to        models.RideStatus
		reachable bool
	}{
		{"pending to assigned", models.RideStatusPending, models.RideStatusAssigned, true},
		{"pending to cancelled", models.RideStatusPending, models.RideStatusCancelled, true},
		{"pending to started", models.RideStatusPending, models.RideStatusStarted, false},
		{"pending to completed", models.RideStatusPending, models.RideStatusCompleted, false},
		{"assigned to started", models.RideStatusAssigned, models.RideStatusStarted, true},
		{"assigned to no show", models.RideStatusAssigned, models.RideStatusNoShow, true},
		{"assigned to picked up", models.RideStatusAssigned, models.RideStatusPickedUp, false},
		{"started to picked up", models.RideStatusStarted, models.RideStatusPickedUp, true},
		{"started to no show", models.RideStatusStarted, models.RideStatusNoShow, true},
		{"picked up to in progress", models.RideStatusPickedUp, models.RideStatusInProgress, true},
		{"picked up to no show", models.RideStatusPickedUp, models.RideStatusNoShow, false},
		{"in progress to completed", models.RideStatusInProgress, models.RideStatusCompleted, true},
		{"completed to return started", models.RideStatusCompleted, models.RideStatusReturnStarted, true},
		{"completed to started", models.RideStatusCompleted, models.RideStatusStarted, false},
		{"return started to return picked up", models.RideStatusReturnStarted, models.RideStatusReturnPickedUp, true},
		{"return picked up to return completed", models.RideStatusReturnPickedUp, models.RideStatusReturnComplete, true},
		{"return picked up to cancelled", models.RideStatusReturnPickedUp, models.RideStatusCancelled, false},
		{"cancelled is terminal", models.RideStatusCancelled, models.RideStatusPending, false},
		{"no show is terminal", models.RideStatusNoShow, models.RideStatusAssigned, false},
		{"return completed is terminal", models.RideStatusReturnComplete, models.RideStatusReturnStarted, false},
		{"no backwards movement", models.RideStatusStarted, models.RideStatusAssigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reachable, statusReachable(tt.from, tt.to))
		})
	}
}

func TestApprovalReachable(t *testing.T) {
	assert.True(t, approvalReachable(models.ApprovalPending, models.ApprovalApproved))
	assert.True(t, approvalReachable(models.ApprovalPending, models.ApprovalDeclined))
	assert.False(t, approvalReachable(models.ApprovalApproved, models.ApprovalPending))
	assert.False(t, approvalReachable(models.ApprovalApproved, models.ApprovalDeclined))
	assert.False(t, approvalReachable(models.ApprovalDeclined, models.ApprovalApproved))
}

func TestProviderReachable(t *testing.T) {
	assert.True(t, providerReachable(models.ProviderPending, models.ProviderAccepted))
	assert.True(t, providerReachable(models.ProviderPending, models.ProviderDeclined))
	assert.False(t, providerReachable(models.ProviderAccepted, models.ProviderDeclined))
	assert.False(t, providerReachable(models.ProviderDeclined, models.ProviderAccepted))
}

func TestStatusGraph_AssignedUnreachableDirectly(t *testing.T) {
	// assigned is produced only by the driver claim; no role may set it
	// through the transition endpoint.
	_, listed := statusValuePermissions[models.RideStatusAssigned]
	assert.False(t, listed)
}

func TestFieldPermissions(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		role    models.UserRole
		allowed bool
	}{
		{"super admin on approval", FieldSuperAdminStatus, models.RoleSuperAdmin, true},
		{"member on approval", FieldSuperAdminStatus, models.RoleMember, false},
		{"driver on approval", FieldSuperAdminStatus, models.RoleDriver, false},
		{"provider admin on provider status", FieldProviderStatus, models.RoleProviderAdmin, true},
		{"super admin on provider status", FieldProviderStatus, models.RoleSuperAdmin, false},
		{"driver on status", FieldStatus, models.RoleDriver, true},
		{"member on status", FieldStatus, models.RoleMember, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, roleAllowed(fieldPermissions[tt.field], tt.role))
		})
	}
}

func TestStatusValuePermissions_ForwardProgressIsDriverOnly(t *testing.T) {
	forward := []models.RideStatus{
		models.RideStatusStarted,
		models.RideStatusPickedUp,
		models.RideStatusInProgress,
		models.RideStatusCompleted,
		models.RideStatusReturnStarted,
		models.RideStatusReturnPickedUp,
		models.RideStatusReturnComplete,
	}
	for _, status := range forward {
		roles := statusValuePermissions[status]
		assert.Equal(t, []models.UserRole{models.RoleDriver}, roles, "status %s", status)
	}
}

func TestStatusValuePermissions_MemberMayOnlyCancel(t *testing.T) {
	for status, roles := range statusValuePermissions {
		if status == models.RideStatusCancelled {
			assert.True(t, roleAllowed(roles, models.RoleMember))
			continue
		}
		assert.False(t, roleAllowed(roles, models.RoleMember), "status %s", status)
	}
}

func TestReasonRequired(t *testing.T) {
	triad := func(s models.RideStatus, a models.ApprovalStatus, p models.ProviderStatus) models.StatusTriad {
		return models.StatusTriad{Status: s, SuperAdminStatus: a, ProviderStatus: p}
	}

	tests := []struct {
		name     string
		field    string
		next     models.StatusTriad
		required bool
	}{
		{"approval decline", FieldSuperAdminStatus, triad(models.RideStatusPending, models.ApprovalDeclined, models.ProviderPending), true},
		{"approval approve", FieldSuperAdminStatus, triad(models.RideStatusPending, models.ApprovalApproved, models.ProviderPending), false},
		{"provider decline", FieldProviderStatus, triad(models.RideStatusPending, models.ApprovalApproved, models.ProviderDeclined), true},
		{"provider accept", FieldProviderStatus, triad(models.RideStatusPending, models.ApprovalApproved, models.ProviderAccepted), false},
		{"cancel", FieldStatus, triad(models.RideStatusCancelled, models.ApprovalApproved, models.ProviderAccepted), true},
		{"no show", FieldStatus, triad(models.RideStatusNoShow, models.ApprovalApproved, models.ProviderAccepted), true},
		{"start", FieldStatus, triad(models.RideStatusStarted, models.ApprovalApproved, models.ProviderAccepted), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.required, reasonRequired(tt.field, tt.next))
		})
	}
}

func TestValidateTriad(t *testing.T) {
	providerID := uuid.New()
	driverID := uuid.New()

	triad := func(s models.RideStatus, a models.ApprovalStatus, p models.ProviderStatus) models.StatusTriad {
		return models.StatusTriad{Status: s, SuperAdminStatus: a, ProviderStatus: p}
	}

	tests := []struct {
		name     string
		ride     *models.Ride
		next     models.StatusTriad
		provider *uuid.UUID
		driver   *uuid.UUID
		wantErr  bool
	}{
		{
			name:    "provider acceptance without a provider attached",
			ride:    &models.Ride{},
			next:    triad(models.RideStatusPending, models.ApprovalApproved, models.ProviderAccepted),
			wantErr: true,
		},
		{
			name:     "provider acceptance without approval",
			ride:     &models.Ride{},
			next:     triad(models.RideStatusPending, models.ApprovalPending, models.ProviderAccepted),
			provider: &providerID,
			wantErr:  true,
		},
		{
			name:     "driven state without a driver",
			ride:     &models.Ride{},
			next:     triad(models.RideStatusStarted, models.ApprovalApproved, models.ProviderAccepted),
			provider: &providerID,
			wantErr:  true,
		},
		{
			name:     "status leaves pending before provider acceptance",
			ride:     &models.Ride{},
			next:     triad(models.RideStatusAssigned, models.ApprovalApproved, models.ProviderPending),
			provider: &providerID,
			driver:   &driverID,
			wantErr:  true,
		},
		{
			name: "declined ride admits nothing",
			ride: &models.Ride{SuperAdminStatus: models.ApprovalDeclined},
			next: triad(models.RideStatusCancelled, models.ApprovalDeclined, models.ProviderPending),
			wantErr: true,
		},
		{
			name:    "return state without a provisioned return leg",
			ride:    &models.Ride{ProviderID: &providerID, DriverID: &driverID},
			next:    triad(models.RideStatusReturnStarted, models.ApprovalApproved, models.ProviderAccepted),
			provider: &providerID,
			driver:  &driverID,
			wantErr: true,
		},
		{
			name: "return state with will-call return leg",
			ride: &models.Ride{
				ProviderID:      &providerID,
				DriverID:        &driverID,
				ReturnPickupTBA: true,
			},
			next:     triad(models.RideStatusReturnStarted, models.ApprovalApproved, models.ProviderAccepted),
			provider: &providerID,
			driver:   &driverID,
			wantErr:  false,
		},
		{
			name:     "normal forward progress",
			ride:     &models.Ride{ProviderID: &providerID, DriverID: &driverID},
			next:     triad(models.RideStatusStarted, models.ApprovalApproved, models.ProviderAccepted),
			provider: &providerID,
			driver:   &driverID,
			wantErr:  false,
		},
		{
			name: "cancel does not need provider acceptance",
			ride: &models.Ride{},
			next: triad(models.RideStatusCancelled, models.ApprovalPending, models.ProviderPending),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTriad(tt.ride, tt.next, tt.provider, tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateTripCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := generateTripCode()
		assert.Regexp(t, `^NEMT-[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}$`, code)
		seen[code] = true
	}
	// 100 draws from an 8-character alphabet-coded space should never collide
	assert.Len(t, seen, 100)
}
