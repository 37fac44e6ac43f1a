package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hearthside/companion/domain/entities"
	"github.com/hearthside/companion/domain/repositories"
)

// countersDocID is the fixed _id of the single counters document.
const countersDocID = "counters"

// Store implements repositories.Store over MongoDB collections.
type Store struct {
	tasks        *mongo.Collection
	journal      *mongo.Collection
	appointments *mongo.Collection
	counters     *mongo.Collection
}

// NewStore creates a MongoDB-backed store on the given database.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		tasks:        db.Collection("tasks"),
		journal:      db.Collection("journal"),
		appointments: db.Collection("appointments"),
		counters:     db.Collection("counters"),
	}
}

func (s *Store) Tasks() repositories.TaskRepository               { return &taskRepository{s.tasks} }
func (s *Store) Journal() repositories.JournalRepository          { return &journalRepository{s.journal} }
func (s *Store) Appointments() repositories.AppointmentRepository { return &appointmentRepository{s.appointments} }
func (s *Store) Counters() repositories.CounterRepository         { return &counterRepository{s.counters} }

type taskRepository struct {
	collection *mongo.Collection
}

// Create implements repositories.TaskRepository
func (r *taskRepository) Create(ctx context.Context, task *entities.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID implements repositories.TaskRepository
func (r *taskRepository) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	var task entities.Task
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return &task, nil
}

// List implements repositories.TaskRepository, newest first
func (r *taskRepository) List(ctx context.Context) ([]*entities.Task, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*entities.Task
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// Update implements repositories.TaskRepository
func (r *taskRepository) Update(ctx context.Context, task *entities.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID}, task)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Delete implements repositories.TaskRepository
func (r *taskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// CountPending implements repositories.TaskRepository
func (r *taskRepository) CountPending(ctx context.Context) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"completed": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return int(count), nil
}

type journalRepository struct {
	collection *mongo.Collection
}

// Create implements repositories.JournalRepository
func (r *journalRepository) Create(ctx context.Context, entry *entities.JournalEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to create journal entry: %w", err)
	}
	return nil
}

// List implements repositories.JournalRepository, newest first
func (r *journalRepository) List(ctx context.Context) ([]*entities.JournalEntry, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*entities.JournalEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode journal entries: %w", err)
	}
	return entries, nil
}

// Delete implements repositories.JournalRepository
func (r *journalRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type appointmentRepository struct {
	collection *mongo.Collection
}

// Create implements repositories.AppointmentRepository
func (r *appointmentRepository) Create(ctx context.Context, appt *entities.Appointment) error {
	if err := appt.Validate(); err != nil {
		return err
	}
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	if _, err := r.collection.InsertOne(ctx, appt); err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// List implements repositories.AppointmentRepository, soonest first
func (r *appointmentRepository) List(ctx context.Context) ([]*entities.Appointment, error) {
	opts := options.Find().SetSort(bson.M{"when": 1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appointments []*entities.Appointment
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

// Delete implements repositories.AppointmentRepository
func (r *appointmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type counterRepository struct {
	collection *mongo.Collection
}

// Get implements repositories.CounterRepository. A missing document
// means fresh state, not an error.
func (r *counterRepository) Get(ctx context.Context) (entities.Counters, error) {
	var doc struct {
		Counters entities.Counters `bson:"counters"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": countersDocID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return entities.Counters{}, nil
		}
		return entities.Counters{}, fmt.Errorf("failed to get counters: %w", err)
	}
	return doc.Counters, nil
}

// Set implements repositories.CounterRepository
func (r *counterRepository) Set(ctx context.Context, counters entities.Counters) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": countersDocID},
		bson.M{"_id": countersDocID, "counters": counters},
		opts,
	)
	if err != nil {
		return fmt.Errorf("failed to set counters: %w", err)
	}
	return nil
}
