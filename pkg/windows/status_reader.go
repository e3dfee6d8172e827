package windows

import (
	"context"

	"github.com/freelanceflow/freelanceflow-backend/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusReader serves the read model of a task's window to pollers
type StatusReader struct {
	Windows WindowRepositoryInterface
	Cache   WindowCacheInterface
	Logger  logger.Interface
}

// View returns the latest window of a task rendered at the current time
func (s *StatusReader) View(ctx context.Context, taskID primitive.ObjectID) (*View, error) {
	window, err := s.window(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return BuildView(window, now()), nil
}

func (s *StatusReader) window(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	if s.Cache != nil {
		window, err := s.Cache.Get(ctx, taskID)
		if err == nil {
			return window, nil
		}
	}

	window, err := s.Windows.FindLatestByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		err = s.Cache.Add(ctx, taskID, window)
		if err != nil {
			s.Logger.Error("Could not cache window of task "+taskID.Hex(), err)
		}
	}

	return window, nil
}
