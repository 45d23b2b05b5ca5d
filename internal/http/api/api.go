package api

import (
	"net/http"
	"strings"

	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/config"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/dispatch"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/http/api/handlers"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/quota"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/security"
	"github.com/agrlayush/smart-bedrock-api-load-balancer/internal/usage"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the wired components the HTTP surface needs.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Store      quota.Store
	Manager    *quota.Manager
	Recorder   *usage.Recorder
	DB         *gorm.DB // nil when the store is not database-backed
	Admin      config.AdminConfig
	Model      string
}

// RegisterRoutes registers the public invoke route, health, and the admin API.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	invokeHandler := handlers.NewInvokeHandler(deps.Dispatcher, deps.Recorder, deps.Model)
	r.POST("/v1/invoke", invokeHandler.Invoke)

	if strings.TrimSpace(deps.Admin.PasswordBcrypt) == "" {
		return
	}

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(deps.Admin)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(deps.Admin))

	endpointHandler := handlers.NewEndpointHandler(deps.Store, deps.DB, deps.Manager)
	authed.GET("/endpoints", endpointHandler.List)
	authed.PUT("/endpoints/:region", endpointHandler.Update)

	usageHandler := handlers.NewUsageHandler(deps.Recorder)
	authed.GET("/usage", usageHandler.List)
}

// adminAuthMiddleware validates admin JWTs.
func adminAuthMiddleware(admin config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		if _, errJWT := security.ParseAdminToken(admin.JWTSecret, token); errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
