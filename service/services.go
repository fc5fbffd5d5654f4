// api/service/services.go
package service

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/permsync/permsync/api/audit"
	"github.com/permsync/permsync/api/dao"
	"github.com/permsync/permsync/api/provider"
	"github.com/permsync/permsync/api/ratelimit"
	"github.com/permsync/permsync/api/store"
	"github.com/permsync/permsync/api/util"
)

type Services struct {
	Template  ITemplateService
	Reconcile IReconcileService
	Access    IAccessService
}

func InitializeServices(
	driver neo4j.Driver,
	client provider.Client,
	source provider.DirectorySource,
	templateStore store.TemplateStore,
	invoker *ratelimit.Invoker,
	auditService audit.Service,
	validationUtil *util.ValidationUtil,
	cacheService *util.CacheService,
	notificationSvc *util.NotificationService,
	eventBus *util.EventBus,
	reconcileOpts ReconcileOptions,
) (*Services, error) {
	var assignmentDAO *dao.AssignmentDAO
	if driver != nil {
		assignmentDAO = dao.NewAssignmentDAO(driver, auditService)
	}

	services := &Services{
		Template: NewTemplateService(templateStore, auditService, validationUtil, cacheService, notificationSvc, eventBus, assignmentDAO),
		Reconcile: NewReconcileService(
			client,
			source,
			templateStore,
			invoker,
			assignmentDAO,
			auditService,
			cacheService,
			notificationSvc,
			eventBus,
			reconcileOpts,
		),
		Access: NewAccessService(assignmentDAO, auditService),
	}

	return services, nil
}
