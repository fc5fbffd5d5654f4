// api/controller/template_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	"github.com/permsync/permsync/api/controller"
	permsync_errors "github.com/permsync/permsync/api/errors"
	"github.com/permsync/permsync/api/model"
	service_mock "github.com/permsync/permsync/api/test/mock"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestTemplateController(t *testing.T) {
	mockTemplateService := new(service_mock.MockTemplateService)
	templateController := controller.NewTemplateController(mockTemplateService)
	router := setupRouter()
	api := router.Group("/")
	templateController.RegisterRoutes(api)

	adminTemplate := &model.Template{
		TemplateType: model.PermissionSetTemplateType,
		Properties:   model.Properties{Name: "AdminAccess"},
	}

	t.Run("CreateTemplate_Success", func(t *testing.T) {
		mockTemplateService.On("CreateTemplate", tmock.Anything, tmock.Anything, tmock.Anything).
			Return(adminTemplate, nil).Once()

		body := strings.NewReader(`{"properties":{"name":"AdminAccess"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/templates", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("CreateTemplate_Failure_Exists", func(t *testing.T) {
		mockTemplateService.On("CreateTemplate", tmock.Anything, tmock.Anything, tmock.Anything).
			Return(nil, permsync_errors.ErrTemplateExists).Once()

		body := strings.NewReader(`{"properties":{"name":"AdminAccess"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/templates", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CreateTemplate_Failure_InvalidBody", func(t *testing.T) {
		body := strings.NewReader(`{"properties":`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/templates", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UpdateTemplate_Success", func(t *testing.T) {
		mockTemplateService.On("UpdateTemplate", tmock.Anything, tmock.Anything, tmock.Anything).
			Return(adminTemplate, nil).Once()

		body := strings.NewReader(`{"properties":{"name":"AdminAccess"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/templates/AdminAccess", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("UpdateTemplate_Failure_NameMismatch", func(t *testing.T) {
		body := strings.NewReader(`{"properties":{"name":"SomethingElse"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/templates/AdminAccess", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UpdateTemplate_Failure_NotFound", func(t *testing.T) {
		mockTemplateService.On("UpdateTemplate", tmock.Anything, tmock.Anything, tmock.Anything).
			Return(nil, permsync_errors.ErrTemplateNotFound).Once()

		body := strings.NewReader(`{"properties":{"name":"AdminAccess"}}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("PUT", "/templates/AdminAccess", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DeleteTemplate_Success", func(t *testing.T) {
		mockTemplateService.On("DeleteTemplate", tmock.Anything, "AdminAccess", tmock.Anything).
			Return(nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/templates/AdminAccess", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("DeleteTemplate_Failure_NotFound", func(t *testing.T) {
		mockTemplateService.On("DeleteTemplate", tmock.Anything, "Missing", tmock.Anything).
			Return(permsync_errors.ErrTemplateNotFound).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/templates/Missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GetTemplate_Success", func(t *testing.T) {
		mockTemplateService.On("GetTemplate", tmock.Anything, "AdminAccess").
			Return(adminTemplate, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/templates/AdminAccess", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var got model.Template
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "AdminAccess", got.ResourceID())
	})

	t.Run("ListTemplates_Success", func(t *testing.T) {
		mockTemplateService.On("ListTemplates", tmock.Anything).
			Return([]*model.Template{adminTemplate}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/templates", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("ListTemplates_Pagination", func(t *testing.T) {
		mockTemplateService.On("ListTemplates", tmock.Anything).
			Return([]*model.Template{adminTemplate, adminTemplate, adminTemplate}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/templates?limit=2&offset=2", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var got []model.Template
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Len(t, got, 1)
	})

	t.Run("ListTemplates_Failure_BadPagination", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/templates?limit=lots", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	mockTemplateService.AssertExpectations(t)
}
