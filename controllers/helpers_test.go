package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/appliance-repair-api/config"
	"github.com/kendall-kelly/appliance-repair-api/middleware"
	"github.com/kendall-kelly/appliance-repair-api/models"
	"github.com/kendall-kelly/appliance-repair-api/services"
	"github.com/kendall-kelly/appliance-repair-api/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// every connection to :memory: opens a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Order{},
		&models.Transaction{},
		&models.Notification{},
		&models.VerificationCode{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	return db
}

// syncPublisher applies order side effects before the request returns
type syncPublisher struct {
	dispatcher *services.Dispatcher
}

func (p syncPublisher) Publish(event workflow.OrderTransitioned) {
	_ = p.dispatcher.Handle(context.Background(), event)
}

// setupTestServices registers the order and notification services on db
func setupTestServices(t *testing.T, db *gorm.DB, prePayment string) {
	store := services.NewGormStore(db)
	notifications := services.NewNotificationService(db)
	dispatcher := services.NewDispatcher(notifications, store, nil, 1)

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Store:            store,
		Events:           syncPublisher{dispatcher: dispatcher},
		PrePaymentAmount: decimal.RequireFromString(prePayment),
	})
	require.NoError(t, err)

	services.SetOrderService(orders)
	services.SetNotificationService(notifications)
	services.SetMediaService(nil)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware simulates the Auth0 JWT middleware for testing
// It sets up the context exactly as the real EnsureValidToken middleware does
func mockAuthMiddleware(auth0ID, role, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Role: role},
		})
		c.Next()
	}
}

// asUser simulates a request that passed authentication and LoadCurrentUser
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			middleware.SetCurrentUser(c, user)
		}
		c.Next()
	}
}

func createTestUser(t *testing.T, db *gorm.DB, name string, role workflow.Role) *models.User {
	user := &models.User{
		Auth0ID: "auth0|" + name,
		Name:    name,
		Email:   name + "@example.com",
		Role:    role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// performRequest sends body as JSON and decodes the JSON response
func performRequest(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	}
	return w, response
}

func errorCode(response map[string]any) string {
	errBody, ok := response["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}

func dataMap(t *testing.T, response map[string]any) map[string]any {
	data, ok := response["data"].(map[string]any)
	require.True(t, ok, "response has an object in data: %v", response)
	return data
}
