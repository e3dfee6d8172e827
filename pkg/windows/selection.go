package windows

import (
	"context"
	"sort"

	"github.com/freelanceflow/freelanceflow-backend/pkg/users"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// PolicyFirstApplied picks the earliest application
	PolicyFirstApplied = "first_applied"
	// PolicyHighestRated picks the applicant with the best rating
	PolicyHighestRated = "rating"
)

// SelectionPolicy picks the winning application of a completed window.
// It must be deterministic for the same input.
type SelectionPolicy interface {
	Select(ctx context.Context, applications []*Application) (*Application, error)
}

func earlier(a *Application, b *Application) bool {
	if a.AppliedAt.Equal(b.AppliedAt) {
		return a.ID.Hex() < b.ID.Hex()
	}
	return a.AppliedAt.Before(b.AppliedAt)
}

// FirstApplied selects the earliest application, ties are broken by id
type FirstApplied struct{}

// Select selects an application
func (FirstApplied) Select(_ context.Context, applications []*Application) (*Application, error) {
	if len(applications) == 0 {
		return nil, errors.New("no applications to select from")
	}

	selected := applications[0]
	for _, a := range applications[1:] {
		if earlier(a, selected) {
			selected = a
		}
	}

	return selected, nil
}

// HighestRated selects the applicant with the highest rating, ties go to the earlier application
type HighestRated struct {
	UserRepository users.UserRepositoryInterface
}

// Select selects an application
func (p HighestRated) Select(ctx context.Context, applications []*Application) (*Application, error) {
	if len(applications) == 0 {
		return nil, errors.New("no applications to select from")
	}

	var workerIDs []primitive.ObjectID
	for _, a := range applications {
		workerIDs = append(workerIDs, a.WorkerID)
	}

	workers, err := p.UserRepository.FindByIDs(ctx, workerIDs)
	if err != nil {
		return nil, errors.Wrap(err, "could not load applicants")
	}

	ratings := make(map[primitive.ObjectID]float64, len(workers))
	for _, w := range workers {
		ratings[w.ID] = w.Rating
	}

	sorted := make([]*Application, len(applications))
	copy(sorted, applications)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := ratings[sorted[i].WorkerID], ratings[sorted[j].WorkerID]
		if ri != rj {
			return ri > rj
		}
		return earlier(sorted[i], sorted[j])
	})

	return sorted[0], nil
}

// PolicyByName returns the policy configured by name, unknown names fall back to FirstApplied
func PolicyByName(name string, userRepository users.UserRepositoryInterface) SelectionPolicy {
	if name == PolicyHighestRated && userRepository != nil {
		return HighestRated{UserRepository: userRepository}
	}

	return FirstApplied{}
}
