// api/controller/reconcile_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/service"
	"github.com/permsync/permsync/api/util"
	helper_util "github.com/permsync/permsync/api/util/helper"
)

type ReconcileController struct {
	reconcileService service.IReconcileService
	accessService    service.IAccessService
}

func NewReconcileController(reconcileService service.IReconcileService, accessService service.IAccessService) *ReconcileController {
	return &ReconcileController{
		reconcileService: reconcileService,
		accessService:    accessService,
	}
}

// RegisterRoutes registers the API routes
func (rc *ReconcileController) RegisterRoutes(r *gin.RouterGroup) {
	reconcile := r.Group("/reconcile")
	{
		reconcile.POST("", rc.RunPass)
		reconcile.GET("/audit", rc.QueryAuditLogs)
	}
	templates := r.Group("/templates")
	{
		templates.POST("/:name/plan", rc.PlanTemplate)
		templates.POST("/:name/apply", rc.ApplyTemplate)
	}
}

// RunPass endpoint triggers one reconciliation pass. The optional mode query
// parameter overrides the configured default (report, execute, import).
func (rc *ReconcileController) RunPass(c *gin.Context) {
	mode := c.Query("mode")
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	run, err := rc.reconcileService.RunPass(c, mode, userID)
	if err != nil {
		switch {
		case errors.Is(err, permsync_errors.ErrReconcileInProgress):
			util.RespondWithError(c, http.StatusConflict, "A reconciliation pass is already running", err)
		case errors.Is(err, permsync_errors.ErrInvalidTemplateData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid reconcile mode", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Reconciliation pass failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, run)
}

// PlanTemplate endpoint reconciles one template in report mode and returns
// the proposed changes without applying any of them.
func (rc *ReconcileController) PlanTemplate(c *gin.Context) {
	rc.runTemplate(c, "report")
}

// ApplyTemplate endpoint reconciles one template in execute mode.
func (rc *ReconcileController) ApplyTemplate(c *gin.Context) {
	rc.runTemplate(c, "execute")
}

func (rc *ReconcileController) runTemplate(c *gin.Context, mode string) {
	name := c.Param("name")
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	run, err := rc.reconcileService.RunTemplate(c, name, mode, userID)
	if err != nil {
		switch {
		case errors.Is(err, permsync_errors.ErrTemplateNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Template not found", err)
		case errors.Is(err, permsync_errors.ErrReconcileInProgress):
			util.RespondWithError(c, http.StatusConflict, "A reconciliation pass is already running", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Reconciliation failed", err)
		}
		return
	}

	c.JSON(http.StatusOK, run)
}

// QueryAuditLogs endpoint
func (rc *ReconcileController) QueryAuditLogs(c *gin.Context) {
	from, err := helper_util.ParseTime(c.DefaultQuery("from", time.Now().Add(-24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid from time", err)
		return
	}
	to, err := helper_util.ParseTime(c.DefaultQuery("to", time.Now().Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid to time", err)
		return
	}

	logs, err := rc.accessService.QueryAuditLogs(c, from, to, c.Query("account"), c.Query("resource_id"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit logs", err)
		return
	}

	c.JSON(http.StatusOK, logs)
}
