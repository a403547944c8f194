package rides

import (
	"github.com/google/uuid"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// Actor identifies the party issuing a transition. ProviderID is only set
// for provider admins and is taken from JWT claims, never from the request
// body.
type Actor struct {
	ID         uuid.UUID
	Role       models.UserRole
	ProviderID *uuid.UUID
}

// Transition field names as they appear on the wire.
const (
	FieldStatus           = "status"
	FieldSuperAdminStatus = "super_admin_status"
	FieldProviderStatus   = "provider_status"
)

// statusGraph is the legal next-state set for the operational status. Any
// jump not listed here is rejected wholesale.
var statusGraph = map[models.RideStatus][]models.RideStatus{
	models.RideStatusPending:        {models.RideStatusAssigned, models.RideStatusCancelled},
	models.RideStatusAssigned:       {models.RideStatusStarted, models.RideStatusCancelled, models.RideStatusNoShow},
	models.RideStatusStarted:        {models.RideStatusPickedUp, models.RideStatusCancelled, models.RideStatusNoShow},
	models.RideStatusPickedUp:       {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress:     {models.RideStatusCompleted, models.RideStatusCancelled},
	models.RideStatusCompleted:      {models.RideStatusReturnStarted},
	models.RideStatusReturnStarted:  {models.RideStatusReturnPickedUp, models.RideStatusCancelled},
	models.RideStatusReturnPickedUp: {models.RideStatusReturnComplete},
	// cancelled, no_show, return_completed are terminal
}

// approvalGraph covers the super-admin triage field.
var approvalGraph = map[models.ApprovalStatus][]models.ApprovalStatus{
	models.ApprovalPending: {models.ApprovalApproved, models.ApprovalDeclined},
}

// providerGraph covers the provider accept/decline field.
var providerGraph = map[models.ProviderStatus][]models.ProviderStatus{
	models.ProviderPending: {models.ProviderAccepted, models.ProviderDeclined},
}

func statusReachable(from, to models.RideStatus) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

func approvalReachable(from, to models.ApprovalStatus) bool {
	for _, next := range approvalGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

func providerReachable(from, to models.ProviderStatus) bool {
	for _, next := range providerGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// fieldPermissions is the single role-permission table consulted for every
// transition. Authorization is enforced here once, not per screen.
var fieldPermissions = map[string][]models.UserRole{
	FieldSuperAdminStatus: {models.RoleSuperAdmin},
	FieldProviderStatus:   {models.RoleProviderAdmin},
	FieldStatus:           {models.RoleDriver, models.RoleMember, models.RoleProviderAdmin, models.RoleSuperAdmin},
}

// statusValuePermissions further narrows who may set specific operational
// status values. Forward progress belongs to the assigned driver; cancel and
// no-show are shared with the supervising roles.
var statusValuePermissions = map[models.RideStatus][]models.UserRole{
	models.RideStatusStarted:        {models.RoleDriver},
	models.RideStatusPickedUp:       {models.RoleDriver},
	models.RideStatusInProgress:     {models.RoleDriver},
	models.RideStatusCompleted:      {models.RoleDriver},
	models.RideStatusReturnStarted:  {models.RoleDriver},
	models.RideStatusReturnPickedUp: {models.RoleDriver},
	models.RideStatusReturnComplete: {models.RoleDriver},
	models.RideStatusCancelled:      {models.RoleMember, models.RoleDriver, models.RoleProviderAdmin, models.RoleSuperAdmin},
	models.RideStatusNoShow:         {models.RoleDriver, models.RoleProviderAdmin, models.RoleSuperAdmin},
}

func roleAllowed(roles []models.UserRole, role models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// reasonRequired reports whether a transition to the given triad demands a
// non-empty reason string. Declines and failure paths always do.
func reasonRequired(field string, next models.StatusTriad) bool {
	switch field {
	case FieldSuperAdminStatus:
		return next.SuperAdminStatus == models.ApprovalDeclined
	case FieldProviderStatus:
		return next.ProviderStatus == models.ProviderDeclined
	case FieldStatus:
		return next.Status == models.RideStatusCancelled || next.Status == models.RideStatusNoShow
	}
	return false
}
