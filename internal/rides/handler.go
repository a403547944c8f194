package rides

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medtransit/nemt-scheduler/pkg/common"
	"github.com/medtransit/nemt-scheduler/pkg/jwtkeys"
	"github.com/medtransit/nemt-scheduler/pkg/middleware"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// Handler handles HTTP requests for rides
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new rides handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// actorFromContext builds the acting party from the JWT claims the auth
// middleware stored on the context.
func actorFromContext(c *gin.Context) (Actor, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return Actor{}, false
	}
	role, err := middleware.GetUserRole(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return Actor{}, false
	}
	return Actor{
		ID:         userID,
		Role:       role,
		ProviderID: middleware.GetProviderID(c),
	}, true
}

// CreateRide handles booking a new ride, one-off or recurring.
func (h *Handler) CreateRide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.CreateRideRequest
	if !common.BindJSON(c, &req) {
		return
	}

	memberID := actor.ID
	if actor.Role == models.RoleSuperAdmin && req.MemberID != nil {
		memberID = *req.MemberID
	}

	rideList, err := h.service.CreateRide(c.Request.Context(), memberID, &req)
	if common.HandleServiceError(c, err, "failed to create ride") {
		return
	}

	if len(rideList) == 1 {
		common.CreatedResponse(c, rideList[0])
		return
	}
	common.CreatedResponse(c, rideList)
}

// GetRide handles getting a ride by ID
func (h *Handler) GetRide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	ride, err := h.service.GetRide(c.Request.Context(), actor, rideID)
	if common.HandleServiceError(c, err, "failed to get ride") {
		return
	}
	common.SuccessResponse(c, ride)
}

// ListRides handles listing rides with triad/party/date filters.
func (h *Handler) ListRides(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var filter models.RideFilter
	if !common.BindQuery(c, &filter) {
		return
	}
	limit, offset := parsePagination(c)

	rideList, total, err := h.service.ListRides(c.Request.Context(), actor, &filter, limit, offset)
	if common.HandleServiceError(c, err, "failed to list rides") {
		return
	}

	common.SuccessResponseWithMeta(c, rideList, &common.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// GetHistory handles reading a ride's transition ledger.
func (h *Handler) GetHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	entries, err := h.service.GetHistory(c.Request.Context(), actor, rideID)
	if common.HandleServiceError(c, err, "failed to get ride history") {
		return
	}
	common.SuccessResponse(c, entries)
}

// Transition handles a single-field status transition request.
func (h *Handler) Transition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.TransitionRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.AttemptTransition(c.Request.Context(), rideID, actor, &req)
	if common.HandleServiceError(c, err, "failed to apply transition") {
		return
	}
	common.SuccessResponse(c, ride)
}

// ClaimProvider handles a super admin attaching a provider to a ride.
func (h *Handler) ClaimProvider(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.ClaimProviderRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.ClaimProviderAssignment(c.Request.Context(), rideID, actor, req.ProviderID)
	if common.HandleServiceError(c, err, "failed to claim provider assignment") {
		return
	}
	common.SuccessResponse(c, ride)
}

// ClaimDriver handles a provider admin attaching a driver to a ride.
func (h *Handler) ClaimDriver(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.ClaimDriverRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.ClaimDriverAssignment(c.Request.Context(), rideID, actor, req.DriverID)
	if common.HandleServiceError(c, err, "failed to claim driver assignment") {
		return
	}
	common.SuccessResponse(c, ride)
}

// RequestReturn handles activating the return leg of a completed ride.
func (h *Handler) RequestReturn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	rideID, ok := common.ParseUUIDParam(c, "id", "ride ID")
	if !ok {
		return
	}

	var req models.ReturnRequest
	if !common.BindJSON(c, &req) {
		return
	}

	ride, err := h.service.RequestReturn(c.Request.Context(), rideID, actor, &req)
	if common.HandleServiceError(c, err, "failed to request return leg") {
		return
	}
	common.SuccessResponse(c, ride)
}

func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

// RegisterRoutes registers ride routes
func (h *Handler) RegisterRoutes(r *gin.Engine, keys jwtkeys.KeyProvider) {
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddlewareWithProvider(keys))

	rides := api.Group("/rides")
	{
		rides.POST("", middleware.RequireRole(models.RoleMember, models.RoleSuperAdmin), h.CreateRide)
		rides.GET("", h.ListRides)
		rides.GET("/:id", h.GetRide)
		rides.GET("/:id/history", h.GetHistory)
		rides.POST("/:id/transitions", h.Transition)
		rides.POST("/:id/claim-provider", middleware.RequireRole(models.RoleSuperAdmin), h.ClaimProvider)
		rides.POST("/:id/claim-driver", middleware.RequireRole(models.RoleProviderAdmin), h.ClaimDriver)
		rides.POST("/:id/return", middleware.RequireRole(models.RoleMember, models.RoleSuperAdmin), h.RequestReturn)
	}
}
