package notifications

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Pusher sends a push message to devices
type Pusher interface {
	Push(ctx context.Context, tokens []string, notification *Notification) error
}

// FirebasePusher sends messages through Firebase Cloud Messaging
type FirebasePusher struct {
	client *messaging.Client
}

// NewFirebasePusher builds a FirebasePusher from a service account file
func NewFirebasePusher(ctx context.Context, projectID string, credentialsFile string) (*FirebasePusher, error) {
	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, err
	}

	return &FirebasePusher{client: client}, nil
}

// Push sends the notification to all tokens
func (p *FirebasePusher) Push(ctx context.Context, tokens []string, notification *Notification) error {
	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Message,
		},
		Data: map[string]string{
			"collapse_key": "notifications",
			"severity":     notification.Severity,
		},
		Tokens: tokens,
	}

	_, err := p.client.SendMulticast(ctx, message)
	return err
}
