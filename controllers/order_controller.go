package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/middleware"
	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
)

const decisionSlug = "decision"

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	ServiceType workflow.ServiceType `json:"service_type" binding:"required"`
	AddressID   *uint                `json:"address_id"`
	Category    string               `json:"category" binding:"required"`
	Brand       string               `json:"brand"`
	Model       string               `json:"model"`
	Description string               `json:"description" binding:"required"`
	Media       []string             `json:"media" binding:"max=10"`
}

// TransitionRequest is the union of every transition body. Which fields are
// read depends on the action.
type TransitionRequest struct {
	PaymentAmount *decimal.Decimal `json:"payment_amount"`
	PaymentReason string           `json:"payment_reason"`
	Decision      string           `json:"decision"`
	Reason        string           `json:"reason"`
	TechnicianID  uint             `json:"technician_id"`
	DeliveryID    uint             `json:"delivery_id"`
}

// OrderResponse is an order with the actions the caller may take on it
type OrderResponse struct {
	*models.Order
	AllowedActions []workflow.ActionView `json:"allowed_actions"`
}

func orderResponse(c *gin.Context, order *models.Order, actions []workflow.ActionView) OrderResponse {
	order.MediaURLs = services.ResolveMediaURLs(c.Request.Context(), services.GetMediaService(), order.MediaKeys)
	if actions == nil {
		actions = []workflow.ActionView{}
	}
	return OrderResponse{Order: order, AllowedActions: actions}
}

func currentActor(c *gin.Context) (workflow.Actor, bool) {
	actor, err := middleware.GetActor(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return workflow.Actor{}, false
	}
	return actor, true
}

func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondErrorCode(c, http.StatusBadRequest, "INVALID_ORDER_ID", "Order ID must be a positive integer", nil)
		return 0, false
	}
	return uint(id), true
}

// CreateOrder handles POST /api/v1/orders - creates a new order (customers only)
func CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	for _, key := range req.Media {
		if !services.ValidMediaKey(actor.ID, key) {
			respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", gin.H{"media": "unknown media key " + key})
			return
		}
	}

	order, err := services.GetOrderService().Create(c.Request.Context(), services.CreateOrderCommand{
		Customer:    actor,
		ServiceType: req.ServiceType,
		AddressID:   req.AddressID,
		Category:    req.Category,
		Brand:       req.Brand,
		Model:       req.Model,
		Description: req.Description,
		MediaKeys:   req.Media,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, orderResponse(c, order, workflow.AllowedActions(order.Snapshot(), actor)))
}

// ListOrders handles GET /api/v1/orders - lists the orders visible to the caller
// Query parameters: page (default 1), limit (default 10, max 100), status
func ListOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	orders, total, err := services.GetOrderService().List(c.Request.Context(), services.OrderFilter{
		Actor:  actor,
		Status: workflow.Status(c.Query("status")),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, orderResponse(c, &orders[i], workflow.AllowedActions(orders[i].Snapshot(), actor)))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// GetOrder handles GET /api/v1/orders/:id - returns the order and its allowed actions
func GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	order, actions, err := services.GetOrderService().Get(c.Request.Context(), orderID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, orderResponse(c, order, actions))
}

// GetOrderActions handles GET /api/v1/orders/:id/actions
func GetOrderActions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	actions, err := services.GetOrderService().AllowedActions(c.Request.Context(), orderID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, actions)
}

// TransitionOrder returns the handler for PATCH /api/v1/<party>/orders/:id/:action.
// The caller's role must belong to party.
func TransitionOrder(party workflow.Party) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			return
		}
		if actor.Role.Party() != party {
			respondErrorCode(c, http.StatusForbidden, "FORBIDDEN", "This endpoint is reserved for "+string(party)+" users", nil)
			return
		}
		orderID, ok := orderIDParam(c)
		if !ok {
			return
		}

		var req TransitionRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				bindingError(c, err)
				return
			}
		}

		action, err := resolveAction(c.Param("action"), req)
		if err != nil {
			// authorization failures take precedence over a malformed decision
			if _, _, getErr := services.GetOrderService().Get(c.Request.Context(), orderID, actor); getErr != nil {
				err = getErr
			}
			respondError(c, err)
			return
		}

		order, err := services.GetOrderService().Transition(c.Request.Context(), services.TransitionCommand{
			OrderID: orderID,
			Actor:   actor,
			Action:  action,
			Payload: transitionPayload(req),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		respond(c, http.StatusOK, orderResponse(c, order, workflow.AllowedActions(order.Snapshot(), actor)))
	}
}

func resolveAction(slug string, req TransitionRequest) (workflow.Action, error) {
	if slug == decisionSlug {
		return workflow.ResolveDecision(req.Decision)
	}
	if action, ok := workflow.ActionFromSlug(slug); ok {
		return action, nil
	}
	// undeclared slugs are rejected by the guard as invalid transitions
	return workflow.Action(slug), nil
}

func transitionPayload(req TransitionRequest) workflow.Payload {
	reason := req.Reason
	if req.PaymentAmount != nil || req.PaymentReason != "" {
		reason = req.PaymentReason
	}
	return workflow.Payload{
		Amount:       req.PaymentAmount,
		Reason:       reason,
		TechnicianID: req.TechnicianID,
		DeliveryID:   req.DeliveryID,
	}
}
