package rides

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtransit/nemt-scheduler/pkg/common"
	"github.com/medtransit/nemt-scheduler/pkg/models"
	"github.com/medtransit/nemt-scheduler/pkg/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// ============================================================================
// Mock Service
// ============================================================================

// MockService is a mock implementation of ServiceInterface
type MockService struct {
	mock.Mock
}

func (m *MockService) CreateRide(ctx context.Context, memberID uuid.UUID, req *models.CreateRideRequest) ([]*models.Ride, error) {
	args := m.Called(ctx, memberID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Ride), args.Error(1)
}

func (m *MockService) GetRide(ctx context.Context, actor Actor, id uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *MockService) ListRides(ctx context.Context, actor Actor, filter *models.RideFilter, limit, offset int) ([]*models.Ride, int64, error) {
	args := m.Called(ctx, actor, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.Ride), args.Get(1).(int64), args.Error(2)
}

func (m *MockService) GetHistory(ctx context.Context, actor Actor, rideID uuid.UUID) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, actor, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}

func (m *MockService) AttemptTransition(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.TransitionRequest) (*models.Ride, error) {
	args := m.Called(ctx, rideID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *MockService) ClaimProviderAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, providerID uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, rideID, actor, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *MockService) ClaimDriverAssignment(ctx context.Context, rideID uuid.UUID, actor Actor, driverID uuid.UUID) (*models.Ride, error) {
	args := m.Called(ctx, rideID, actor, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

func (m *MockService) RequestReturn(ctx context.Context, rideID uuid.UUID, actor Actor, req *models.ReturnRequest) (*models.Ride, error) {
	args := m.Called(ctx, rideID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ride), args.Error(1)
}

// ============================================================================
// Test Helpers
// ============================================================================

func setupTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	c.Request = req

	return c, w
}

func setUserContext(c *gin.Context, userID uuid.UUID, role models.UserRole) {
	c.Set("user_id", userID)
	c.Set("user_email", "test@example.com")
	c.Set("user_role", role)
}

func setRideParam(c *gin.Context, rideID uuid.UUID) {
	c.Params = gin.Params{{Key: "id", Value: rideID.String()}}
}

func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	return response
}

func createTestRide(memberID uuid.UUID) *models.Ride {
	return &models.Ride{
		ID:                  uuid.New(),
		TripCode:            "NEMT-AB12-CD34",
		MemberID:            memberID,
		Status:              models.RideStatusPending,
		SuperAdminStatus:    models.ApprovalPending,
		ProviderStatus:      models.ProviderPending,
		PickupAddress:       "12 Elm St, Springfield",
		DropoffAddress:      "400 Clinic Dr, Springfield",
		ScheduledPickupTime: time.Now().Add(24 * time.Hour),
		PaymentMethod:       models.PaymentMethodMedicaid,
		PaymentStatus:       models.PaymentStatusUnbilled,
		CreatedAt:           time.Now(),
		UpdatedAt:           time.Now(),
	}
}

func createRideBody() map[string]interface{} {
	return map[string]interface{}{
		"pickup_address":        "12 Elm St, Springfield",
		"dropoff_address":       "400 Clinic Dr, Springfield",
		"scheduled_pickup_time": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"payment_method":        "medicaid",
	}
}

// ============================================================================
// CreateRide Handler Tests
// ============================================================================

func TestHandler_CreateRide_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	ride := createTestRide(memberID)
	mockService.On("CreateRide", mock.Anything, memberID, mock.AnythingOfType("*models.CreateRideRequest")).
		Return([]*models.Ride{ride}, nil)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", createRideBody())
	setUserContext(c, memberID, models.RoleMember)

	handler.CreateRide(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	response := parseResponse(w)
	assert.Equal(t, true, response["success"])
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "single booking should return one ride object")
	assert.Equal(t, ride.TripCode, data["trip_code"])
	mockService.AssertExpectations(t)
}

func TestHandler_CreateRide_RecurringReturnsSet(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	set := []*models.Ride{createTestRide(memberID), createTestRide(memberID), createTestRide(memberID)}
	mockService.On("CreateRide", mock.Anything, memberID, mock.Anything).Return(set, nil)

	body := createRideBody()
	body["recurrence"] = map[string]interface{}{
		"frequency":  "daily",
		"start_date": "2026-09-01T00:00:00Z",
		"end_date":   "2026-09-03T00:00:00Z",
	}
	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", body)
	setUserContext(c, memberID, models.RoleMember)

	handler.CreateRide(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	response := parseResponse(w)
	data, ok := response["data"].([]interface{})
	require.True(t, ok, "recurring booking should return the expanded set")
	assert.Len(t, data, 3)
}

func TestHandler_CreateRide_SuperAdminBooksOnBehalf(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	agentID := uuid.New()
	memberID := uuid.New()
	ride := createTestRide(memberID)
	// The service must be called with the member's ID, not the agent's.
	mockService.On("CreateRide", mock.Anything, memberID, mock.Anything).Return([]*models.Ride{ride}, nil)

	body := createRideBody()
	body["member_id"] = memberID.String()
	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", body)
	setUserContext(c, agentID, models.RoleSuperAdmin)

	handler.CreateRide(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_CreateRide_MemberCannotBookForOthers(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	otherID := uuid.New()
	ride := createTestRide(memberID)
	// member_id in the body is ignored for non-admin callers
	mockService.On("CreateRide", mock.Anything, memberID, mock.Anything).Return([]*models.Ride{ride}, nil)

	body := createRideBody()
	body["member_id"] = otherID.String()
	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", body)
	setUserContext(c, memberID, models.RoleMember)

	handler.CreateRide(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockService.AssertExpectations(t)
}

func TestHandler_CreateRide_InvalidBody(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", map[string]interface{}{
		"pickup_address": "too short for dropoff to be missing",
	})
	setUserContext(c, uuid.New(), models.RoleMember)

	handler.CreateRide(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "CreateRide")
}

func TestHandler_CreateRide_Unauthorized(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides", createRideBody())

	handler.CreateRide(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ============================================================================
// GetRide Handler Tests
// ============================================================================

func TestHandler_GetRide_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	ride := createTestRide(memberID)
	mockService.On("GetRide", mock.Anything, mock.Anything, ride.ID).Return(ride, nil)

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides/"+ride.ID.String(), nil)
	setUserContext(c, memberID, models.RoleMember)
	setRideParam(c, ride.ID)

	handler.GetRide(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, ride.ID.String(), data["id"])
}

func TestHandler_GetRide_InvalidID(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides/not-a-uuid", nil)
	setUserContext(c, uuid.New(), models.RoleMember)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	handler.GetRide(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "GetRide")
}

func TestHandler_GetRide_NotFound(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	mockService.On("GetRide", mock.Anything, mock.Anything, rideID).
		Return(nil, common.NewNotFoundError("ride not found", ErrRideNotFound))

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides/"+rideID.String(), nil)
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, rideID)

	handler.GetRide(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetRide_Forbidden(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	mockService.On("GetRide", mock.Anything, mock.Anything, rideID).
		Return(nil, common.NewForbiddenError("not authorized for this ride", ErrPermissionDenied))

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides/"+rideID.String(), nil)
	setUserContext(c, uuid.New(), models.RoleMember)
	setRideParam(c, rideID)

	handler.GetRide(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

// ============================================================================
// ListRides Handler Tests
// ============================================================================

func TestHandler_ListRides_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	set := []*models.Ride{createTestRide(memberID), createTestRide(memberID)}
	mockService.On("ListRides", mock.Anything, mock.Anything, mock.Anything, 20, 0).
		Return(set, int64(2), nil)

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides", nil)
	setUserContext(c, memberID, models.RoleMember)

	handler.ListRides(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].([]interface{})
	assert.Len(t, data, 2)
	meta := response["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["total"])
	assert.Equal(t, float64(20), meta["limit"])
}

func TestHandler_ListRides_Pagination(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	mockService.On("ListRides", mock.Anything, mock.Anything, mock.Anything, 5, 10).
		Return([]*models.Ride{}, int64(0), nil)

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides?limit=5&offset=10", nil)
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)

	handler.ListRides(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

// ============================================================================
// GetHistory Handler Tests
// ============================================================================

func TestHandler_GetHistory_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	entries := []models.HistoryEntry{
		{ID: uuid.New(), RideID: rideID, Seq: 1, ActorRole: models.RoleSuperAdmin, CreatedAt: time.Now()},
		{ID: uuid.New(), RideID: rideID, Seq: 2, ActorRole: models.RoleDriver, CreatedAt: time.Now()},
	}
	mockService.On("GetHistory", mock.Anything, mock.Anything, rideID).Return(entries, nil)

	c, w := setupTestContext(http.MethodGet, "/api/v1/rides/"+rideID.String()+"/history", nil)
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, rideID)

	handler.GetHistory(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].([]interface{})
	assert.Len(t, data, 2)
}

// ============================================================================
// Transition Handler Tests
// ============================================================================

func TestHandler_Transition_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	driverID := uuid.New()
	ride := createTestRide(uuid.New())
	ride.Status = models.RideStatusStarted
	mockService.On("AttemptTransition", mock.Anything, ride.ID, mock.Anything, mock.AnythingOfType("*models.TransitionRequest")).
		Return(ride, nil)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+ride.ID.String()+"/transitions", map[string]interface{}{
		"field": "status",
		"value": "started",
	})
	setUserContext(c, driverID, models.RoleDriver)
	setRideParam(c, ride.ID)

	handler.Transition(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "started", data["status"])
}

func TestHandler_Transition_InvalidField(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/transitions", map[string]interface{}{
		"field": "payment_status",
		"value": "paid",
	})
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, rideID)

	handler.Transition(c)

	// binding rejects unknown transition fields before the service runs
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "AttemptTransition")
}

func TestHandler_Transition_IllegalTransition(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	mockService.On("AttemptTransition", mock.Anything, rideID, mock.Anything, mock.Anything).
		Return(nil, common.NewIllegalTransitionError("cannot move status from pending to completed", ErrIllegalTransition))

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/transitions", map[string]interface{}{
		"field": "status",
		"value": "completed",
	})
	setUserContext(c, uuid.New(), models.RoleDriver)
	setRideParam(c, rideID)

	handler.Transition(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	response := parseResponse(w)
	assert.Equal(t, false, response["success"])
}

func TestHandler_Transition_Conflict(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	mockService.On("AttemptTransition", mock.Anything, rideID, mock.Anything, mock.Anything).
		Return(nil, common.NewStaleStateError("ride state changed since read, retry", ErrStaleState))

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/transitions", map[string]interface{}{
		"field": "status",
		"value": "started",
	})
	setUserContext(c, uuid.New(), models.RoleDriver)
	setRideParam(c, rideID)

	handler.Transition(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// ============================================================================
// Claim Handler Tests
// ============================================================================

func TestHandler_ClaimProvider_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	providerID := uuid.New()
	ride := createTestRide(uuid.New())
	ride.SuperAdminStatus = models.ApprovalApproved
	ride.ProviderID = &providerID
	mockService.On("ClaimProviderAssignment", mock.Anything, ride.ID, mock.Anything, providerID).
		Return(ride, nil)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+ride.ID.String()+"/claim-provider", map[string]interface{}{
		"provider_id": providerID.String(),
	})
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, ride.ID)

	handler.ClaimProvider(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "approved", data["super_admin_status"])
	assert.Equal(t, providerID.String(), data["provider_id"])
}

func TestHandler_ClaimProvider_AlreadyClaimed(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	providerID := uuid.New()
	mockService.On("ClaimProviderAssignment", mock.Anything, rideID, mock.Anything, providerID).
		Return(nil, common.NewConflictError("ride was claimed by another request", ErrAlreadyClaimed))

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/claim-provider", map[string]interface{}{
		"provider_id": providerID.String(),
	})
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, rideID)

	handler.ClaimProvider(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_ClaimProvider_MissingBody(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/claim-provider", map[string]interface{}{})
	setUserContext(c, uuid.New(), models.RoleSuperAdmin)
	setRideParam(c, rideID)

	handler.ClaimProvider(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "ClaimProviderAssignment")
}

func TestHandler_ClaimDriver_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	providerID := uuid.New()
	driverID := uuid.New()
	ride := createTestRide(uuid.New())
	ride.Status = models.RideStatusAssigned
	ride.ProviderStatus = models.ProviderAccepted
	ride.ProviderID = &providerID
	ride.DriverID = &driverID
	mockService.On("ClaimDriverAssignment", mock.Anything, ride.ID, mock.MatchedBy(func(actor Actor) bool {
		return actor.ProviderID != nil && *actor.ProviderID == providerID
	}), driverID).Return(ride, nil)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+ride.ID.String()+"/claim-driver", map[string]interface{}{
		"driver_id": driverID.String(),
	})
	setUserContext(c, uuid.New(), models.RoleProviderAdmin)
	c.Set("provider_id", providerID)
	setRideParam(c, ride.ID)

	handler.ClaimDriver(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "assigned", data["status"])
	mockService.AssertExpectations(t)
}

// ============================================================================
// RequestReturn Handler Tests
// ============================================================================

func TestHandler_RequestReturn_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	memberID := uuid.New()
	ride := createTestRide(memberID)
	ride.Status = models.RideStatusCompleted
	ride.ReturnPickupTBA = true
	mockService.On("RequestReturn", mock.Anything, ride.ID, mock.Anything, mock.MatchedBy(func(req *models.ReturnRequest) bool {
		return req.TBA && req.PickupTime == nil
	})).Return(ride, nil)

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+ride.ID.String()+"/return", map[string]interface{}{
		"tba": true,
	})
	setUserContext(c, memberID, models.RoleMember)
	setRideParam(c, ride.ID)

	handler.RequestReturn(c)

	assert.Equal(t, http.StatusOK, w.Code)
	response := parseResponse(w)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["return_pickup_tba"])
	mockService.AssertExpectations(t)
}

func TestHandler_RequestReturn_ValidationError(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)

	rideID := uuid.New()
	mockService.On("RequestReturn", mock.Anything, rideID, mock.Anything, mock.Anything).
		Return(nil, common.NewValidationError("either pickup_time or tba must be set"))

	c, w := setupTestContext(http.MethodPost, "/api/v1/rides/"+rideID.String()+"/return", map[string]interface{}{})
	setUserContext(c, uuid.New(), models.RoleMember)
	setRideParam(c, rideID)

	handler.RequestReturn(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
