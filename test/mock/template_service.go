// test/mock/template_service.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/permsync/permsync/api/model"
)

// MockTemplateService is a mock implementation of service.ITemplateService
type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) CreateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error) {
	args := m.Called(ctx, template, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) UpdateTemplate(ctx context.Context, template model.Template, userID string) (*model.Template, error) {
	args := m.Called(ctx, template, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) DeleteTemplate(ctx context.Context, name string, userID string) error {
	args := m.Called(ctx, name, userID)
	return args.Error(0)
}

func (m *MockTemplateService) GetTemplate(ctx context.Context, name string) (*model.Template, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateService) ListTemplates(ctx context.Context) ([]*model.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Template), args.Error(1)
}
