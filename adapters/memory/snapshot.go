package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hearthside/companion/domain/entities"
)

// snapshot is the on-disk form of the whole store.
type snapshot struct {
	Tasks        []*entities.Task         `json:"tasks"`
	Journal      []*entities.JournalEntry `json:"journal"`
	Appointments []*entities.Appointment  `json:"appointments"`
	Counters     entities.Counters        `json:"counters"`
	SavedAt      time.Time                `json:"saved_at"`
}

// Snapshotter periodically writes the in-memory store to a JSON file
// and restores it on startup, so a restart does not wipe the dashboard.
type Snapshotter struct {
	store    *Store
	path     string
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewSnapshotter creates a snapshotter for the given store and file
// path. A zero interval defaults to one minute.
func NewSnapshotter(store *Store, path string, interval time.Duration, logger *zap.Logger) *Snapshotter {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Snapshotter{
		store:    store,
		path:     path,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Restore loads the snapshot file into the store. A missing file is
// not an error; the store simply starts empty.
func (s *Snapshotter) Restore(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	for _, task := range snap.Tasks {
		s.store.tasks[task.ID] = task
	}
	for _, entry := range snap.Journal {
		s.store.journal[entry.ID] = entry
	}
	for _, appt := range snap.Appointments {
		s.store.appointments[appt.ID] = appt
	}
	s.store.counters = snap.Counters

	s.logger.Info("Restored store snapshot",
		zap.String("path", s.path),
		zap.Int("tasks", len(snap.Tasks)),
		zap.Int("journal", len(snap.Journal)),
		zap.Int("appointments", len(snap.Appointments)))
	return nil
}

// Start begins the background save loop.
func (s *Snapshotter) Start() {
	go s.saveLoop()
	s.logger.Info("Store snapshot service started", zap.String("path", s.path))
}

// Stop halts the loop and writes one final snapshot.
func (s *Snapshotter) Stop() {
	close(s.stopChan)
	if err := s.Save(); err != nil {
		s.logger.Error("Failed to write final snapshot", zap.Error(err))
	}
	s.logger.Info("Store snapshot service stopped")
}

func (s *Snapshotter) saveLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.Save(); err != nil {
				s.logger.Error("Failed to write snapshot", zap.Error(err))
			}
		}
	}
}

// Save writes the store to disk atomically via a temp file rename.
func (s *Snapshotter) Save() error {
	ctx := context.Background()
	tasks, err := s.store.Tasks().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	journal, err := s.store.Journal().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list journal entries: %w", err)
	}
	appointments, err := s.store.Appointments().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list appointments: %w", err)
	}
	counters, err := s.store.Counters().Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load counters: %w", err)
	}

	snap := snapshot{
		Tasks:        tasks,
		Journal:      journal,
		Appointments: appointments,
		Counters:     counters,
		SavedAt:      time.Now(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
