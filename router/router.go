// api/router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/permsync/permsync/api/config"
	"github.com/permsync/permsync/api/controller"
	"github.com/permsync/permsync/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))
	if config.GetBool("auth.enabled") {
		router.Use(middleware.GroupAuthMiddleware([]string{"permsync-admin"}))
	}

	api := router.Group("/api/v1")

	controllers.Template.RegisterRoutes(api)
	controllers.Reconcile.RegisterRoutes(api)
	controllers.Access.RegisterRoutes(api)

	return router
}
