package notifications

import (
	"context"

	"github.com/freelanceflow/freelanceflow-backend/pkg/email"
	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationController stores notifications and fans them out to push and email
type NotificationController struct {
	Repository     NotificationRepositoryInterface
	UserRepository users.UserRepositoryInterface
	Logger         logger.Interface

	// Pusher is optional
	Pusher Pusher
	// Mailer is optional, only severities listed in EmailSeverities are mailed
	Mailer          email.Mailer
	EmailTemplate   string
	EmailSeverities map[string]bool
}

// Notify persists the notification, delivery to devices and mailboxes is best effort
func (n *NotificationController) Notify(ctx context.Context, userID primitive.ObjectID, title string, message string, severity string) error {
	notification := Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Severity: severity,
	}

	err := n.Repository.Add(ctx, &notification)
	if err != nil {
		return errors.Wrap(err, "could not persist notification")
	}

	if n.Pusher == nil && (n.Mailer == nil || !n.EmailSeverities[severity]) {
		return nil
	}

	user, err := n.UserRepository.FindByID(ctx, userID.Hex())
	if err != nil {
		n.Logger.Error("Could not find user for notification delivery", err)
		return nil
	}

	if n.Pusher != nil && len(user.DeviceTokens) > 0 {
		var tokens []string
		for _, token := range user.DeviceTokens {
			tokens = append(tokens, token.Token)
		}

		err = n.Pusher.Push(ctx, tokens, &notification)
		if err != nil {
			n.Logger.Error("Could not send push notification", err)
		}
	}

	if n.Mailer != nil && n.EmailSeverities[severity] && user.Email != "" {
		err = n.Mailer.SendEmail(ctx, &email.Email{
			ReceiverName:    user.FullName(),
			ReceiverAddress: user.Email,
			Template:        n.EmailTemplate,
			Parameters: map[string]interface{}{
				"title":   title,
				"message": message,
				"name":    user.Firstname,
			},
		})
		if err != nil {
			n.Logger.Error("Could not send notification email", err)
		}
	}

	return nil
}
