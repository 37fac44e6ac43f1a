package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
)

// StatusService builds the dashboard snapshot the companion session
// reads once at start. The snapshot is deliberately small: pending task
// count, time since the last check-in, and the next upcoming
// appointment. Nothing is pushed to a running session.
type StatusService struct {
	store repositories.Store
}

// NewStatusService creates a new status service.
func NewStatusService(store repositories.Store) *StatusService {
	return &StatusService{store: store}
}

// Snapshot assembles the current dashboard status.
func (s *StatusService) Snapshot(ctx context.Context) (entities.StatusSnapshot, error) {
	return s.snapshotAt(ctx, time.Now())
}

func (s *StatusService) snapshotAt(ctx context.Context, now time.Time) (entities.StatusSnapshot, error) {
	pending, err := s.store.Tasks().CountPending(ctx)
	if err != nil {
		return entities.StatusSnapshot{}, fmt.Errorf("failed to count pending tasks: %w", err)
	}

	counters, err := s.store.Counters().Get(ctx)
	if err != nil {
		return entities.StatusSnapshot{}, fmt.Errorf("failed to load counters: %w", err)
	}

	appointments, err := s.store.Appointments().List(ctx)
	if err != nil {
		return entities.StatusSnapshot{}, fmt.Errorf("failed to list appointments: %w", err)
	}

	snap := entities.StatusSnapshot{
		PendingTaskCount:      pending,
		MinutesSinceLastCheck: counters.MinutesSinceCheck(now),
	}
	for _, appt := range appointments {
		if appt.When.After(now) {
			snap.NextAppointment = appt
			break
		}
	}
	return snap, nil
}

// BuildInstruction renders the persona instruction that seeds a
// companion session, folding the snapshot into the opening context.
func (s *StatusService) BuildInstruction(snap entities.StatusSnapshot, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a warm, patient voice companion for someone who needs gentle care and encouragement. ")
	b.WriteString("Speak slowly and kindly, in short sentences. Offer reassurance, never pressure. ")
	b.WriteString("You can see the room through the camera; mention what you notice only when it helps the conversation.\n\n")

	b.WriteString(fmt.Sprintf("It is currently %s.\n", now.Format("Monday, 3:04 PM")))
	if snap.PendingTaskCount > 0 {
		b.WriteString(fmt.Sprintf("There are %d routine tasks still to do today; a gentle nudge toward one of them is welcome.\n", snap.PendingTaskCount))
	} else {
		b.WriteString("Every routine task for today is done. Celebrate that.\n")
	}
	if snap.MinutesSinceLastCheck > 0 {
		b.WriteString(fmt.Sprintf("The last caregiver check-in was %d minutes ago.\n", snap.MinutesSinceLastCheck))
	}
	if snap.NextAppointment != nil {
		b.WriteString(fmt.Sprintf("The next appointment is %s.\n", snap.NextAppointment.Summary()))
	}
	return b.String()
}
