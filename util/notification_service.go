// api/util/notification_service.go

package util

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	logger "github.com/permsync/permsync/api/logging"
	"github.com/permsync/permsync/api/model"
)

type NotificationService struct {
	// You might want to add dependencies here, such as a message queue client
}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

func (n *NotificationService) NotifyTemplateChange(ctx context.Context, changeType string, template model.Template) error {
	// In a real implementation, you might send this to a message queue or external notification service
	switch changeType {
	case "created":
		logger.Info("NOTIFICATION: New template created",
			zap.String("template", template.ResourceID()),
			zap.String("owner", template.Owner))
	case "updated":
		logger.Info("NOTIFICATION: Template updated",
			zap.String("template", template.ResourceID()),
			zap.String("owner", template.Owner))
	case "deleted":
		logger.Info("NOTIFICATION: Template deleted",
			zap.String("template", template.ResourceID()))
	default:
		return fmt.Errorf("unknown change type: %s", changeType)
	}

	return nil
}

// NotifyReconcileOutcome flags pass results that need a human: any account
// that saw exceptions, or drift detected while running in report mode.
func (n *NotificationService) NotifyReconcileOutcome(ctx context.Context, mode string, results []model.TemplateChangeDetails) error {
	for _, result := range results {
		if len(result.ExceptionsSeen) > 0 {
			logger.Warn("NOTIFICATION: Reconciliation exceptions",
				zap.String("template", result.ResourceID),
				zap.Int("accounts", len(result.ExceptionsSeen)))
		}
		if mode == "report" && len(result.ProposedChanges) > 0 {
			logger.Info("NOTIFICATION: Drift detected",
				zap.String("template", result.ResourceID),
				zap.Int("accounts", len(result.ProposedChanges)))
		}
	}
	return nil
}

func (n *NotificationService) SendEmail(ctx context.Context, recipient, subject, body string) error {
	// Mock email sending
	logger.Info("Sending email",
		zap.String("recipient", recipient),
		zap.String("subject", subject))

	return nil
}

func (n *NotificationService) NotifyAdmins(ctx context.Context, message string) error {
	// Logic to notify all system administrators
	logger.Info("Notifying admins", zap.String("message", message))
	return nil
}

// NotifyOwner routes a template-specific message to its owner.
func (n *NotificationService) NotifyOwner(ctx context.Context, template model.Template, message string) error {
	if template.Owner == "" {
		return n.NotifyAdmins(ctx, message)
	}
	logger.Info("Notifying template owner",
		zap.String("owner", template.Owner),
		zap.String("template", template.ResourceID()),
		zap.String("message", message))
	return nil
}
