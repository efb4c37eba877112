package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moriwaka/gemini-podcat-generator/internal/audio"
	"github.com/moriwaka/gemini-podcat-generator/internal/metrics"
	"github.com/moriwaka/gemini-podcat-generator/internal/podcast"
)

var (
	// ErrNotFound is returned when no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrNoAudio is returned when saving a session without audio.
	ErrNoAudio = errors.New("session has no audio")
)

// Session is one completed episode: topic, transcript, sources and WAV audio.
type Session struct {
	ID         string           `json:"id"`
	Topic      string           `json:"topic"`
	Language   podcast.Language `json:"language"`
	Transcript []podcast.Turn   `json:"transcript"`
	Sources    []podcast.Source `json:"sources"`
	Audio      []byte           `json:"-"`
	// Timestamp is the creation time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// sessionRecord is the persisted row
type sessionRecord struct {
	ID         string           `gorm:"primaryKey;size:36"`
	Topic      string           `gorm:"not null"`
	Language   string           `gorm:"size:8;not null"`
	Transcript []podcast.Turn   `gorm:"serializer:json"`
	Sources    []podcast.Source `gorm:"serializer:json"`
	Audio      []byte           `gorm:"not null"`
	Timestamp  int64            `gorm:"index;not null"`
}

func (sessionRecord) TableName() string {
	return "sessions"
}

// SessionStore persists completed sessions in a SQLite database. It opens the
// database lazily on first use; Init may be called any number of times.
type SessionStore struct {
	path   string
	db     *gorm.DB
	mu     sync.Mutex
	logger *slog.Logger

	metrics *metrics.Metrics
}

// New creates a store backed by the database file at path
func New(path string, logger *slog.Logger, m *metrics.Metrics) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		path:    path,
		logger:  logger,
		metrics: m,
	}
}

// NewSessionID returns a fresh unique session id
func NewSessionID() string {
	return uuid.NewString()
}

// Init opens or creates the database and its schema. Safe to call repeatedly.
func (s *SessionStore) Init(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *SessionStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.WithContext(ctx), nil
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(s.path+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		s.metrics.RecordStoreError("init")
		return nil, fmt.Errorf("failed to open session store %s: %w", s.path, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&sessionRecord{}); err != nil {
		s.metrics.RecordStoreError("init")
		if sqlDB, cerr := db.DB(); cerr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}

	s.db = db
	s.logger.Info("Session store ready", slog.String("path", s.path))
	return s.db.WithContext(ctx), nil
}

// SaveSession inserts the session, overwriting any existing one with the same id.
// Sessions without valid WAV audio are rejected.
func (s *SessionStore) SaveSession(ctx context.Context, session *Session) error {
	if err := validate(session); err != nil {
		return err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if session.Timestamp == 0 {
		session.Timestamp = time.Now().UnixMilli()
	}

	record := toRecord(session)
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&record).Error; err != nil {
		s.metrics.RecordStoreError("save")
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	s.metrics.RecordSessionSaved()
	s.logger.Info("Session saved",
		slog.String("session_id", session.ID),
		slog.String("topic", session.Topic),
		slog.Int("turns", len(session.Transcript)),
		slog.Int("audio_bytes", len(session.Audio)),
	)
	return nil
}

// GetAllSessions returns every stored session, most recent first
func (s *SessionStore) GetAllSessions(ctx context.Context) ([]Session, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var records []sessionRecord
	if err := db.Order("timestamp DESC").Order("id").Find(&records).Error; err != nil {
		s.metrics.RecordStoreError("list")
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]Session, len(records))
	for i := range records {
		sessions[i] = fromRecord(&records[i])
	}
	return sessions, nil
}

// GetSession returns the session with the given id or ErrNotFound
func (s *SessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var record sessionRecord
	if err := db.Where("id = ?", id).Take(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.metrics.RecordStoreError("get")
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	session := fromRecord(&record)
	return &session, nil
}

// DeleteSession removes the session with the given id. Deleting an absent id is not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result := db.Where("id = ?", id).Delete(&sessionRecord{})
	if result.Error != nil {
		s.metrics.RecordStoreError("delete")
		return fmt.Errorf("failed to delete session %s: %w", id, result.Error)
	}

	if result.RowsAffected > 0 {
		s.metrics.RecordSessionDeleted()
		s.logger.Info("Session deleted", slog.String("session_id", id))
	}
	return nil
}

// Close releases the database handle. The store reopens lazily if used again.
func (s *SessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	s.db = nil
	return sqlDB.Close()
}

func validate(session *Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("session id cannot be empty")
	}
	if len(session.Audio) <= audio.WAVHeaderSize {
		return fmt.Errorf("%w: %s", ErrNoAudio, session.ID)
	}
	if err := audio.ValidateWAV(session.Audio); err != nil {
		return fmt.Errorf("invalid session audio: %w", err)
	}
	if err := podcast.ValidateTranscript(session.Transcript); err != nil {
		return fmt.Errorf("invalid session transcript: %w", err)
	}
	return nil
}

func toRecord(s *Session) sessionRecord {
	return sessionRecord{
		ID:         s.ID,
		Topic:      s.Topic,
		Language:   string(s.Language),
		Transcript: s.Transcript,
		Sources:    s.Sources,
		Audio:      s.Audio,
		Timestamp:  s.Timestamp,
	}
}

func fromRecord(r *sessionRecord) Session {
	transcript := r.Transcript
	if transcript == nil {
		transcript = []podcast.Turn{}
	}
	sources := r.Sources
	if sources == nil {
		sources = []podcast.Source{}
	}
	return Session{
		ID:         r.ID,
		Topic:      r.Topic,
		Language:   podcast.Language(r.Language),
		Transcript: transcript,
		Sources:    sources,
		Audio:      r.Audio,
		Timestamp:  r.Timestamp,
	}
}
