package reaper

import (
	"log"
	"sync"
	"time"

	"github.com/Mahekshaikh389/collaborative-whiteboard/internal/db"
)

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
	}
}

// Service periodically deletes persisted rooms that have gone idle. It
// is a pure time-based sweep over the store: live membership is not
// consulted, since any room with live members keeps a fresh
// last_activity anyway.
type Service struct {
	database *db.Database
	config   Config
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(database *db.Database, config Config) *Service {
	return &Service{
		database: database,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("Reaper started (interval: %v, retention: %v)",
		s.config.Interval, s.config.Retention)
}

// Stop shuts the sweep loop down. Safe to call more than once; the
// shutdown path reaches it from both a defer and the signal handler.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		log.Println("Reaper stopped")
	})
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	cutoff := time.Now().UTC().Add(-s.config.Retention)
	deleted, err := s.database.DeleteInactiveRooms(cutoff)
	if err != nil {
		log.Printf("Reaper: failed to delete idle rooms: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Reaper: cleaned up %d idle rooms", deleted)
	}
}

// SweepNow runs one sweep immediately.
func (s *Service) SweepNow() {
	s.sweep()
}
