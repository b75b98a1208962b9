package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ms-express-checkout/internal/auth"
	"ms-express-checkout/internal/logger"
	"ms-express-checkout/internal/models"
	"ms-express-checkout/internal/utils"
)

// Store is the slice of the DB layer the admin surface needs.
type Store interface {
	GetPaymentByToken(token string) (*models.ExpressPayment, error)
	ListPayments(limit, offset int) ([]models.ExpressPayment, error)
	ListGatewayLogs(limit, offset int) ([]models.GatewayLog, error)
	GetGatewaySettings() (*models.GatewaySettings, error)
	SaveGatewaySettings(settings models.GatewaySettings) error
}

// SettingsCache invalidates the cached gateway settings snapshot after
// the stored row changes.
type SettingsCache interface {
	Invalidate()
}

type Handler struct {
	store  Store
	cache  SettingsCache
	logger *logger.Logger
}

func NewHandler(store Store, cache SettingsCache, logger *logger.Logger) *Handler {
	return &Handler{store: store, cache: cache, logger: logger}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/api/express-payments", h.ListPayments)
	r.GET("/api/express-payments/logs", h.ListGatewayLogs)
	r.GET("/api/express-payments/settings", h.GetSettings)
	r.PUT("/api/express-payments/settings", h.UpdateSettings)
	r.GET("/api/express-payments/:token", h.GetPayment)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (h *Handler) ListPayments(c *gin.Context) {
	limit, offset := pagination(c)
	h.logger.Info("ADMIN", fmt.Sprintf("ListPayments requested by %s (limit=%d offset=%d)", auth.UserID(c), limit, offset))

	payments, err := h.store.ListPayments(limit, offset)
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("ListPayments failed: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not list payments", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.PagedResponse("Express payments", payments, limit, offset, len(payments)))
}

func (h *Handler) GetPayment(c *gin.Context) {
	token := c.Param("token")

	payment, err := h.store.GetPaymentByToken(token)
	if err != nil {
		h.logger.Warn("ADMIN", fmt.Sprintf("GetPayment: %v", err))
		c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment not found", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Express payment", payment))
}

func (h *Handler) ListGatewayLogs(c *gin.Context) {
	limit, offset := pagination(c)
	h.logger.Info("ADMIN", fmt.Sprintf("ListGatewayLogs requested by %s", auth.UserID(c)))

	logs, err := h.store.ListGatewayLogs(limit, offset)
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("ListGatewayLogs failed: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not list gateway logs", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.PagedResponse("Gateway failure logs", logs, limit, offset, len(logs)))
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.GetGatewaySettings()
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("GetSettings failed: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not load settings", err.Error()))
		return
	}

	// Secrets stay out of the response body
	c.JSON(http.StatusOK, utils.SuccessResponse("Gateway settings", settings))
}

type settingsRequest struct {
	APIUsername string `json:"api_username"`
	APIPassword string `json:"api_password"`
	Signature   string `json:"signature"`
	Sandbox     bool   `json:"sandbox"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	err := h.store.SaveGatewaySettings(models.GatewaySettings{
		APIUsername: req.APIUsername,
		APIPassword: req.APIPassword,
		Signature:   req.Signature,
		Sandbox:     req.Sandbox,
	})
	if err != nil {
		h.logger.Error("ADMIN", fmt.Sprintf("UpdateSettings failed: %v", err))
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Could not save settings", err.Error()))
		return
	}

	if h.cache != nil {
		h.cache.Invalidate()
	}
	h.logger.Info("ADMIN", fmt.Sprintf("Gateway settings updated by %s", auth.UserID(c)))

	c.JSON(http.StatusOK, utils.SuccessResponse("Gateway settings updated", nil))
}
