package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
)

// DashboardService holds the mutation logic behind the dashboard
// buttons: completing a task earns a star, the water button counts
// glasses, and the check button records a caregiver visit.
type DashboardService struct {
	store repositories.Store
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(store repositories.Store) *DashboardService {
	return &DashboardService{store: store}
}

// ToggleTask flips a task's completion state. A transition to
// completed awards one star; un-completing never takes one back.
func (s *DashboardService) ToggleTask(ctx context.Context, id string) (*entities.Task, entities.Counters, error) {
	task, err := s.store.Tasks().GetByID(ctx, id)
	if err != nil {
		return nil, entities.Counters{}, err
	}

	earnedStar := task.Toggle()
	if err := s.store.Tasks().Update(ctx, task); err != nil {
		return nil, entities.Counters{}, fmt.Errorf("failed to update task: %w", err)
	}

	counters, err := s.store.Counters().Get(ctx)
	if err != nil {
		return nil, entities.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}
	if earnedStar {
		counters.Stars++
		if err := s.store.Counters().Set(ctx, counters); err != nil {
			return nil, entities.Counters{}, fmt.Errorf("failed to save counters: %w", err)
		}
	}
	return task, counters, nil
}

// AddWater records one more glass of water. Hydration earns a star
// like any completed task.
func (s *DashboardService) AddWater(ctx context.Context) (entities.Counters, error) {
	counters, err := s.store.Counters().Get(ctx)
	if err != nil {
		return entities.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}
	counters.WaterCount++
	counters.Stars++
	if err := s.store.Counters().Set(ctx, counters); err != nil {
		return entities.Counters{}, fmt.Errorf("failed to save counters: %w", err)
	}
	return counters, nil
}

// RecordCheck stamps a caregiver check-in at the given time. A
// check-in earns two stars and leaves a completed task on the list so
// the visit shows up in the day's history.
func (s *DashboardService) RecordCheck(ctx context.Context, now time.Time) (entities.Counters, error) {
	counters, err := s.store.Counters().Get(ctx)
	if err != nil {
		return entities.Counters{}, fmt.Errorf("failed to load counters: %w", err)
	}
	counters.LastCheck = now
	counters.Stars += 2

	record := entities.NewTask(fmt.Sprintf("Caregiver check-in at %s", now.Format("3:04 PM")), entities.TaskTypeGeneral)
	record.Completed = true
	record.CreatedAt = now
	if err := s.store.Tasks().Create(ctx, record); err != nil {
		return entities.Counters{}, fmt.Errorf("failed to log check-in task: %w", err)
	}

	if err := s.store.Counters().Set(ctx, counters); err != nil {
		return entities.Counters{}, fmt.Errorf("failed to save counters: %w", err)
	}
	return counters, nil
}
