package scheduling

import (
	"github.com/Silviu2326/Dentaflow-sub002/pkg/interfaces"
	"github.com/Silviu2326/Dentaflow-sub002/pkg/logger"
)

// NotificationService implements notification delivery for appointments
type NotificationService struct {
	logger *logger.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(log *logger.Logger) interfaces.NotificationService {
	return &NotificationService{
		logger: log,
	}
}

// SendEmail sends an email notification
func (n *NotificationService) SendEmail(to, subject, body string) error {
	// TODO: Integrate with the clinic's email provider (SendGrid, AWS SES).
	n.logger.WithFields(map[string]interface{}{
		"to":      to,
		"subject": subject,
	}).Info("Email notification sent")
	return nil
}

// SendSMS sends an SMS notification
func (n *NotificationService) SendSMS(to, message string) error {
	// TODO: Integrate with the clinic's SMS provider (Twilio).
	n.logger.WithField("to", to).Info("SMS notification sent")
	return nil
}
