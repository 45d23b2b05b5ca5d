package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/config"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/models"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/security"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/usage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler issues admin tokens.
type AuthHandler struct {
	admin config.AdminConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(admin config.AdminConfig) *AuthHandler {
	return &AuthHandler{admin: admin}
}

// loginRequest is the admin login payload.
type loginRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password and returns a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	if !security.CheckPassword(h.admin.PasswordBcrypt, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, errSign := security.SignAdminToken(h.admin.JWTSecret, h.admin.JWTExpiry.Std())
	if errSign != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int64(h.admin.JWTExpiry.Std().Seconds())})
}

// EndpointHandler exposes quota state to admins.
type EndpointHandler struct {
	store   quota.Store
	db      *gorm.DB
	manager *quota.Manager
}

// NewEndpointHandler constructs an EndpointHandler. The db connection may be
// nil when the store is not database-backed; quota updates are then rejected.
func NewEndpointHandler(store quota.Store, db *gorm.DB, manager *quota.Manager) *EndpointHandler {
	return &EndpointHandler{store: store, db: db, manager: manager}
}

// List returns the current quota state for every endpoint.
func (h *EndpointHandler) List(c *gin.Context) {
	snapshot, errLoad := h.store.LoadAll(c.Request.Context())
	if errLoad != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "load endpoints failed"})
		return
	}
	now := time.Now()
	out := make([]gin.H, 0, len(snapshot))
	for _, ep := range snapshot {
		out = append(out, gin.H{
			"region":        ep.Region,
			"total_quota":   ep.TotalQuota,
			"used_quota":    ep.UsedQuota,
			"available":     h.manager.Available(ep, now),
			"last_reset":    ep.LastReset,
			"request_count": ep.RequestCount,
			"stale":         h.manager.Stale(ep, now),
		})
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": out})
}

// updateEndpointRequest changes an endpoint's per-window quota.
type updateEndpointRequest struct {
	TotalQuota int64 `json:"total_quota"`
}

// Update changes an endpoint's total quota. Usage counters are untouched.
func (h *EndpointHandler) Update(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "quota updates require a database-backed store"})
		return
	}
	region := strings.TrimSpace(c.Param("region"))
	if region == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "region is required"})
		return
	}
	var req updateEndpointRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || req.TotalQuota <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_quota must be positive"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Model(&models.Endpoint{}).
		Where("region = ?", region).
		Update("total_quota", req.TotalQuota)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update endpoint failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown region"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": region, "total_quota": req.TotalQuota})
}

// UsageHandler lists recent served requests.
type UsageHandler struct {
	recorder *usage.Recorder
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(recorder *usage.Recorder) *UsageHandler {
	return &UsageHandler{recorder: recorder}
}

// usageListQuery defines filters for the usage list view.
type usageListQuery struct {
	Limit int `form:"limit,default=50"` // Page size.
}

// List returns recent usage rows, newest first.
func (h *UsageHandler) List(c *gin.Context) {
	var q usageListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	rows, errRecent := h.recorder.Recent(c.Request.Context(), q.Limit)
	if errRecent != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": rows})
}
