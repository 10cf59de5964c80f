package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/config"
	"github.com/kendall-kelly/appliance-repair-api/models"
)

// CreateAddressRequest represents the request body for saving a service address
type CreateAddressRequest struct {
	City      string `json:"city" binding:"required"`
	Street    string `json:"street" binding:"required"`
	Building  string `json:"building"`
	Apartment string `json:"apartment"`
	Note      string `json:"note" binding:"max=500"`
}

// CreateAddress handles POST /api/v1/addresses - saves an address for the caller
func CreateAddress(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	address := models.Address{
		UserID:    actor.ID,
		City:      req.City,
		Street:    req.Street,
		Building:  req.Building,
		Apartment: req.Apartment,
		Note:      req.Note,
	}
	if err := config.GetDB().WithContext(c.Request.Context()).Create(&address).Error; err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create address", nil)
		return
	}
	respond(c, http.StatusCreated, address)
}

// ListAddresses handles GET /api/v1/addresses - lists the caller's addresses
func ListAddresses(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	addresses := []models.Address{}
	err := config.GetDB().WithContext(c.Request.Context()).
		Where("user_id = ?", actor.ID).
		Order("id ASC").
		Find(&addresses).Error
	if err != nil {
		respondErrorCode(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch addresses", nil)
		return
	}
	respond(c, http.StatusOK, addresses)
}
