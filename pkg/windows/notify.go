package windows

import (
	"context"
	"sync"
	"time"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"github.com/freelanceflow/freelanceflow-backend/pkg/notifications"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AsyncNotifier sends notifications in the background, failures are only logged
type AsyncNotifier struct {
	Dispatcher notifications.Dispatcher
	Logger     logger.Interface
	Timeout    time.Duration

	wg sync.WaitGroup
}

// Send dispatches a notification without waiting for it, a nil notifier drops it
func (n *AsyncNotifier) Send(userID primitive.ObjectID, title string, message string, severity string) {
	if n == nil || n.Dispatcher == nil {
		return
	}

	timeout := n.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := n.Dispatcher.Notify(ctx, userID, title, message, severity)
		if err != nil && n.Logger != nil {
			n.Logger.Error("Could not send notification to "+userID.Hex(), err)
		}
	}()
}

// Wait blocks until every notification sent so far is delivered or failed
func (n *AsyncNotifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
