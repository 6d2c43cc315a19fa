package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arcadehub/users-service/internal/container"
	"github.com/arcadehub/users-service/internal/domain/entity"
	handlers "github.com/arcadehub/users-service/internal/interface/http"
	"github.com/arcadehub/users-service/internal/interface/middleware"
	"github.com/arcadehub/users-service/pkg/helpers"
)

// AccountModule wires account HTTP handlers and auth middleware into routes.
// Public: POST /api/users, POST /api/auth, GET /health
// Authenticated: GET /api/users/search
// Admin: GET /api/users, GET /api/users/:id, DELETE /api/users/:id
type AccountModule struct {
	Handler *handlers.AccountHandler
	JWT     *helpers.JWTManager
}

func NewAccountModule(h *handlers.AccountHandler, jwt *helpers.JWTManager) *AccountModule {
	return &AccountModule{Handler: h, JWT: jwt}
}

func (m *AccountModule) Register(rg *gin.RouterGroup) {
	authLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP())

	rg.POST("/users", m.Handler.Create)
	rg.POST("/auth", authLimiter, m.Handler.Auth)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	{
		auth.GET("/users/search", m.Handler.Search)

		admin := auth.Group("/")
		admin.Use(middleware.RequireRole(entity.ProfileAdmin.String()))
		{
			admin.GET("/users", m.Handler.List)
			admin.GET("/users/:id", m.Handler.Get)
			admin.DELETE("/users/:id", m.Handler.Delete)
		}
	}
}
