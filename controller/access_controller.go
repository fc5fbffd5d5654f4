// api/controller/access_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/service"
	"github.com/permsync/permsync/api/util"
)

type AccessController struct {
	accessService service.IAccessService
}

func NewAccessController(accessService service.IAccessService) *AccessController {
	return &AccessController{
		accessService: accessService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AccessController) RegisterRoutes(r *gin.RouterGroup) {
	access := r.Group("/access")
	{
		access.GET("/accounts/:id", ac.GetAccountAccess)
	}
}

// GetAccountAccess endpoint answers "who can reach what" for one account
// from the projected access graph.
func (ac *AccessController) GetAccountAccess(c *gin.Context) {
	accountID := c.Param("id")

	entries, err := ac.accessService.GetAccountAccess(c, accountID)
	if err != nil {
		if errors.Is(err, permsync_errors.ErrGraphUnavailable) {
			util.RespondWithError(c, http.StatusServiceUnavailable, "Access graph is not enabled", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch account access", err)
		}
		return
	}

	c.JSON(http.StatusOK, entries)
}
