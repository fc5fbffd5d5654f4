// api/controller/controllers.go
package controller

import "github.com/permsync/permsync/api/service"

type Controllers struct {
	Template  *TemplateController
	Reconcile *ReconcileController
	Access    *AccessController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Template:  NewTemplateController(services.Template),
		Reconcile: NewReconcileController(services.Reconcile, services.Access),
		Access:    NewAccessController(services.Access),
	}
}
