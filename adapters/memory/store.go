package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
)

// Store is an in-memory implementation of repositories.Store. It backs
// single-household deployments that run without MongoDB; pair it with
// the Snapshotter to survive restarts.
type Store struct {
	mu           sync.RWMutex
	tasks        map[string]*entities.Task
	journal      map[string]*entities.JournalEntry
	appointments map[string]*entities.Appointment
	counters     entities.Counters
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		tasks:        make(map[string]*entities.Task),
		journal:      make(map[string]*entities.JournalEntry),
		appointments: make(map[string]*entities.Appointment),
	}
}

func (s *Store) Tasks() repositories.TaskRepository               { return (*taskRepository)(s) }
func (s *Store) Journal() repositories.JournalRepository          { return (*journalRepository)(s) }
func (s *Store) Appointments() repositories.AppointmentRepository { return (*appointmentRepository)(s) }
func (s *Store) Counters() repositories.CounterRepository         { return (*counterRepository)(s) }

type taskRepository Store

func (r *taskRepository) Create(ctx context.Context, task *entities.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

// List returns tasks newest first.
func (r *taskRepository) List(ctx context.Context) ([]*entities.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *taskRepository) Update(ctx context.Context, task *entities.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *taskRepository) CountPending(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, task := range r.tasks {
		if !task.Completed {
			count++
		}
	}
	return count, nil
}

type journalRepository Store

func (r *journalRepository) Create(ctx context.Context, entry *entities.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	r.journal[entry.ID] = &cp
	return nil
}

// List returns entries newest first.
func (r *journalRepository) List(ctx context.Context) ([]*entities.JournalEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.JournalEntry, 0, len(r.journal))
	for _, entry := range r.journal {
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *journalRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.journal[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.journal, id)
	return nil
}

type appointmentRepository Store

func (r *appointmentRepository) Create(ctx context.Context, appt *entities.Appointment) error {
	if err := appt.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	cp := *appt
	r.appointments[appt.ID] = &cp
	return nil
}

// List returns appointments ordered by When ascending.
func (r *appointmentRepository) List(ctx context.Context) ([]*entities.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entities.Appointment, 0, len(r.appointments))
	for _, appt := range r.appointments {
		cp := *appt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].When.Before(out[j].When)
	})
	return out, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.appointments, id)
	return nil
}

type counterRepository Store

func (r *counterRepository) Get(ctx context.Context) (entities.Counters, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters, nil
}

func (r *counterRepository) Set(ctx context.Context, counters entities.Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = counters
	return nil
}
