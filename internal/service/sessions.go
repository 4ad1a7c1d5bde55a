package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-annotate/internal/db"
	"github.com/joeblew999/plat-annotate/internal/events"
	"github.com/joeblew999/plat-annotate/internal/scene"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Config configures a SessionService.
type Config struct {
	// DataDir holds sessions.json and one GeoJSON file per session. Empty
	// keeps everything in memory.
	DataDir string
	// Bus receives every annotation event, stamped with the session id.
	Bus *events.Bus
	// DB, when set, mirrors each session's annotations for SQL queries.
	DB *sql.DB
	// Viewport is used for sessions created without a viewport size.
	Viewport scene.Viewport
}

// SessionService manages map sessions.
type SessionService struct {
	cfg      Config
	sessions map[string]*Session
	records  map[string]sessionRecord
	mu       sync.RWMutex
}

// NewSessionService creates the service and restores saved sessions.
func NewSessionService(cfg Config) *SessionService {
	s := &SessionService{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		records:  make(map[string]sessionRecord),
	}
	s.loadFromDisk()
	return s
}

// List returns every session ordered by creation.
func (s *SessionService) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a session by ID.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Create starts a new session.
func (s *SessionService) Create(cfg SessionConfig) (*Session, error) {
	rec := sessionRecord{
		ID:        ulid.Make().String(),
		Name:      cfg.Name,
		Style:     cfg.Style,
		CreatedAt: time.Now().UTC(),
		Viewport:  cfg.Viewport,
	}
	if rec.Style == "" {
		rec.Style = "default"
	}
	if rec.Viewport.Width <= 0 {
		rec.Viewport.Width = s.cfg.Viewport.Width
	}
	if rec.Viewport.Height <= 0 {
		rec.Viewport.Height = s.cfg.Viewport.Height
	}

	sess, err := s.start(rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = sess
	s.records[rec.ID] = rec
	if err := s.saveToDisk(); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"session": rec.ID, "name": rec.Name}).Info("Session created")
	return sess, nil
}

// Delete stops a session and removes its saved state.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	delete(s.sessions, id)
	delete(s.records, id)
	err := s.saveToDisk()
	s.mu.Unlock()

	sess.close()
	if s.cfg.DataDir != "" {
		if rmErr := os.Remove(s.annotationsFile(id)); rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.Join(err, rmErr)
		}
	}
	if s.cfg.DB != nil {
		err = errors.Join(err, db.DeleteSnapshot(ctx, s.cfg.DB, id))
	}
	return err
}

// Close stops every session loop. Saved state is kept.
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (s *SessionService) start(rec sessionRecord) (*Session, error) {
	var pub events.Publisher
	if s.cfg.Bus != nil {
		pub = events.PublisherFunc(func(e events.Event) {
			e.Session = rec.ID
			s.cfg.Bus.Publish(e)
		})
	}
	return newSession(rec, pub, s)
}

// saveAnnotations writes the annotations of one session to disk and the
// database.
func (s *SessionService) saveAnnotations(id string, fc *geojson.FeatureCollection) error {
	if s.cfg.DataDir != "" {
		if err := os.MkdirAll(filepath.Dir(s.annotationsFile(id)), 0755); err != nil {
			return err
		}
		data, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(s.annotationsFile(id), data, 0644); err != nil {
			return err
		}
	}
	if s.cfg.DB != nil {
		if err := db.SaveSnapshot(context.Background(), s.cfg.DB, id, fc); err != nil {
			return fmt.Errorf("mirroring session %s: %w", id, err)
		}
	}
	return nil
}

// saveStyle records the style a session switched to.
func (s *SessionService) saveStyle(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	rec.Style = name
	s.records[id] = rec
	return s.saveToDisk()
}

// indexFile returns the path to the session index.
func (s *SessionService) indexFile() string {
	return filepath.Join(s.cfg.DataDir, "sessions.json")
}

func (s *SessionService) annotationsFile(id string) string {
	return filepath.Join(s.cfg.DataDir, "sessions", id+".geojson")
}

// loadFromDisk restarts every saved session with its annotations.
func (s *SessionService) loadFromDisk() {
	if s.cfg.DataDir == "" {
		return
	}
	data, err := os.ReadFile(s.indexFile())
	if err != nil {
		return // No index yet, start empty
	}

	var records map[string]sessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logrus.WithError(err).Warn("Ignoring unreadable session index")
		return
	}

	for id, rec := range records {
		log := logrus.WithField("session", id)
		sess, err := s.start(rec)
		if err != nil {
			log.WithError(err).Error("Could not restore session")
			continue
		}
		if raw, err := os.ReadFile(s.annotationsFile(id)); err == nil {
			fc, err := geojson.UnmarshalFeatureCollection(raw)
			if err == nil {
				err = sess.restore(context.Background(), fc)
			}
			if err != nil {
				log.WithError(err).Warn("Could not restore annotations")
			}
		}
		s.sessions[id] = sess
		s.records[id] = rec
	}
	logrus.WithField("sessions", len(s.sessions)).Info("Sessions restored")
}

// saveToDisk persists the session index. Callers hold mu.
func (s *SessionService) saveToDisk() error {
	if s.cfg.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.cfg.DataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexFile(), data, 0644)
}
