// api/controller/template_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
	"github.com/permsync/permsync/api/service"
	"github.com/permsync/permsync/api/util"
	helper_util "github.com/permsync/permsync/api/util/helper"
)

type TemplateController struct {
	templateService service.ITemplateService
}

func NewTemplateController(templateService service.ITemplateService) *TemplateController {
	return &TemplateController{
		templateService: templateService,
	}
}

// RegisterRoutes registers the API routes
func (tc *TemplateController) RegisterRoutes(r *gin.RouterGroup) {
	templates := r.Group("/templates")
	{
		templates.POST("", tc.CreateTemplate)
		templates.PUT("/:name", tc.UpdateTemplate)
		templates.DELETE("/:name", tc.DeleteTemplate)
		templates.GET("/:name", tc.GetTemplate)
		templates.GET("", tc.ListTemplates)
	}
}

// CreateTemplate endpoint
func (tc *TemplateController) CreateTemplate(c *gin.Context) {
	var template model.Template
	if err := c.ShouldBindJSON(&template); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid template data", permsync_errors.ErrInvalidTemplateData)
		return
	}
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	createdTemplate, err := tc.templateService.CreateTemplate(c, template, userID)
	if err != nil {
		switch {
		case errors.Is(err, permsync_errors.ErrTemplateExists):
			util.RespondWithError(c, http.StatusConflict, "Template already exists", err)
		case errors.Is(err, permsync_errors.ErrInvalidTemplateData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid template data", err)
		case errors.Is(err, permsync_errors.ErrTemplateStore):
			util.RespondWithError(c, http.StatusInternalServerError, "Template store operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create template", permsync_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdTemplate)
}

// UpdateTemplate endpoint
func (tc *TemplateController) UpdateTemplate(c *gin.Context) {
	name := c.Param("name")
	var template model.Template
	if err := c.ShouldBindJSON(&template); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid template data", err)
		return
	}
	if template.Properties.Name == "" {
		template.Properties.Name = name
	}
	if template.Properties.Name != name {
		util.RespondWithError(c, http.StatusBadRequest, "Template name does not match path", permsync_errors.ErrInvalidTemplateData)
		return
	}
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	updatedTemplate, err := tc.templateService.UpdateTemplate(c, template, userID)
	if err != nil {
		switch {
		case errors.Is(err, permsync_errors.ErrTemplateNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Template not found", err)
		case errors.Is(err, permsync_errors.ErrInvalidTemplateData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid template data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to update template", err)
		}
		return
	}

	c.JSON(http.StatusOK, updatedTemplate)
}

// DeleteTemplate endpoint
func (tc *TemplateController) DeleteTemplate(c *gin.Context) {
	name := c.Param("name")
	userID, err := util.GetUserIDFromContext(c)
	if err != nil {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	if err := tc.templateService.DeleteTemplate(c, name, userID); err != nil {
		if errors.Is(err, permsync_errors.ErrTemplateNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Template not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to delete template", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// GetTemplate endpoint
func (tc *TemplateController) GetTemplate(c *gin.Context) {
	name := c.Param("name")

	template, err := tc.templateService.GetTemplate(c, name)
	if err != nil {
		if errors.Is(err, permsync_errors.ErrTemplateNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Template not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve template", err)
		}
		return
	}

	c.JSON(http.StatusOK, template)
}

// ListTemplates endpoint
func (tc *TemplateController) ListTemplates(c *gin.Context) {
	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", err)
		return
	}

	templates, err := tc.templateService.ListTemplates(c)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}

	if offset > len(templates) {
		offset = len(templates)
	}
	end := offset + limit
	if end > len(templates) {
		end = len(templates)
	}

	c.JSON(http.StatusOK, templates[offset:end])
}
