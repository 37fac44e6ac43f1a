package repositories

import (
	"context"
	"errors"

	"github.com/hearthside/companion/domain/entities"
)

// ErrNotFound is returned by any repository when a looked-up record
// does not exist.
var ErrNotFound = errors.New("record not found")

// TaskRepository defines data access methods for routine tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, id string) (*entities.Task, error)
	List(ctx context.Context) ([]*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	Delete(ctx context.Context, id string) error
	// CountPending returns the number of uncompleted tasks.
	CountPending(ctx context.Context) (int, error)
}

// JournalRepository defines data access methods for journal entries.
type JournalRepository interface {
	Create(ctx context.Context, entry *entities.JournalEntry) error
	List(ctx context.Context) ([]*entities.JournalEntry, error)
	Delete(ctx context.Context, id string) error
}

// AppointmentRepository defines data access methods for appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *entities.Appointment) error
	// List returns appointments ordered by When ascending.
	List(ctx context.Context) ([]*entities.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// CounterRepository persists the star/water tallies and the last
// check-in time.
type CounterRepository interface {
	Get(ctx context.Context) (entities.Counters, error)
	Set(ctx context.Context, counters entities.Counters) error
}

// Store bundles every repository backed by one persistence layer so
// wiring can swap the whole set at once.
type Store interface {
	Tasks() TaskRepository
	Journal() JournalRepository
	Appointments() AppointmentRepository
	Counters() CounterRepository
}
