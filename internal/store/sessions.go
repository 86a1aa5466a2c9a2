package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"
)

// SessionStatus represents the status of a refactor session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// RefactorSession is one submission run through the workflow.
type RefactorSession struct {
	ID             string               `json:"id"              gorm:"primaryKey"`
	ProfileID      string               `json:"profile_id"      gorm:"index"`
	RequestedBy    string               `json:"requested_by"`
	Language       string               `json:"language"`
	FilePath       string               `json:"file_path"`
	Status         SessionStatus        `json:"status"          gorm:"default:pending"`
	OriginalCode   string               `json:"original_code"   gorm:"type:text"`
	RefactoredCode string               `json:"refactored_code" gorm:"type:text"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	Warnings       string               `json:"warnings,omitempty" gorm:"type:text"`
	Suggestions    []RefactorSuggestion `json:"suggestions"     gorm:"foreignKey:SessionID"`
	Metric         *ComplianceMetric    `json:"metric,omitempty" gorm:"foreignKey:SessionID"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

// TableName returns the table name for the RefactorSession model.
func (RefactorSession) TableName() string {
	return "refactor_sessions"
}

// RefactorSuggestion is one proposed change within a session.
type RefactorSuggestion struct {
	ID         string    `json:"id"         gorm:"primaryKey"`
	SessionID  string    `json:"session_id" gorm:"index"`
	LineStart  int       `json:"line_start"`
	LineEnd    int       `json:"line_end"`
	Original   string    `json:"original"   gorm:"type:text"`
	Proposed   string    `json:"proposed"   gorm:"type:text"`
	Rationale  string    `json:"rationale"  gorm:"type:text"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for the RefactorSuggestion model.
func (RefactorSuggestion) TableName() string {
	return "refactor_suggestions"
}

// ComplianceMetric is the single measurement record a completed session
// produces. Exactly one row exists per session.
type ComplianceMetric struct {
	ID              string    `json:"id"               gorm:"primaryKey"`
	SessionID       string    `json:"session_id"       gorm:"uniqueIndex"`
	PolicyScore     float64   `json:"policy_score"`
	ComplexityDelta float64   `json:"complexity_delta"`
	TestPassRate    float64   `json:"test_pass_rate"`
	LatencyMS       int64     `json:"latency_ms"`
	TokenUsage      int       `json:"token_usage"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the table name for the ComplianceMetric model.
func (ComplianceMetric) TableName() string {
	return "compliance_metrics"
}

// SessionRepository defines the interface for session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *RefactorSession) error
	GetByID(ctx context.Context, id string) (*RefactorSession, error)
	List(ctx context.Context, limit int) ([]*RefactorSession, error)
	UpdateStatus(ctx context.Context, id string, status SessionStatus, errorMsg string) error
	SaveResults(
		ctx context.Context,
		id string,
		refactoredCode string,
		warnings string,
		suggestions []RefactorSuggestion,
		metric *ComplianceMetric,
	) error
}

// PGSessionRepository is the PostgreSQL implementation of SessionRepository.
type PGSessionRepository struct {
	pool pool.Pool
}

// NewSessionRepository creates a new session repository. With a database
// pool it persists to PostgreSQL, otherwise it falls back to in-memory
// storage.
func NewSessionRepository(_ context.Context, p pool.Pool) SessionRepository {
	if p != nil {
		return &PGSessionRepository{pool: p}
	}
	return NewMemorySessionRepository()
}

func (r *PGSessionRepository) db(ctx context.Context, readOnly bool) *gorm.DB {
	if r.pool == nil {
		return nil
	}
	return r.pool.DB(ctx, readOnly)
}

// Create creates a session record.
func (r *PGSessionRepository) Create(ctx context.Context, session *RefactorSession) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = SessionStatusPending
	}
	return db.Create(session).Error
}

// GetByID retrieves a session with its suggestions and metrics.
func (r *PGSessionRepository) GetByID(ctx context.Context, id string) (*RefactorSession, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var session RefactorSession
	err := db.Preload("Suggestions").Preload("Metric").First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &session, nil
}

// List lists recent sessions, newest first.
func (r *PGSessionRepository) List(ctx context.Context, limit int) ([]*RefactorSession, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var sessions []*RefactorSession
	q := db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateStatus updates the session status, stamping completion on
// terminal states.
func (r *PGSessionRepository) UpdateStatus(
	ctx context.Context,
	id string,
	status SessionStatus,
	errorMsg string,
) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	updates := map[string]interface{}{
		"status":        status,
		"error_message": errorMsg,
		"updated_at":    time.Now(),
	}

	now := time.Now()
	if status == SessionStatusCompleted || status == SessionStatusFailed {
		updates["completed_at"] = &now
	}

	return db.Model(&RefactorSession{}).Where("id = ?", id).Updates(updates).Error
}

// SaveResults persists the rewrite, suggestions and the session's metric
// record in one transaction.
func (r *PGSessionRepository) SaveResults(
	ctx context.Context,
	id string,
	refactoredCode string,
	warnings string,
	suggestions []RefactorSuggestion,
	metric *ComplianceMetric,
) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	return db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"refactored_code": refactoredCode,
			"warnings":        warnings,
			"updated_at":      now,
		}
		if err := tx.Model(&RefactorSession{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		for i := range suggestions {
			suggestions[i].SessionID = id
			suggestions[i].CreatedAt = now
		}
		if len(suggestions) > 0 {
			if err := tx.Create(&suggestions).Error; err != nil {
				return err
			}
		}

		if metric != nil {
			metric.SessionID = id
			metric.CreatedAt = now
			if err := tx.Create(metric).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// MemorySessionRepository is an in-memory session repository for testing.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*RefactorSession
}

// NewMemorySessionRepository creates an in-memory session repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*RefactorSession),
	}
}

// Create creates a session record.
func (r *MemorySessionRepository) Create(_ context.Context, session *RefactorSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Status == "" {
		session.Status = SessionStatusPending
	}
	r.sessions[session.ID] = session
	return nil
}

// GetByID retrieves a session by ID.
func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (*RefactorSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return session, nil
}

// List lists recent sessions.
func (r *MemorySessionRepository) List(_ context.Context, limit int) ([]*RefactorSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*RefactorSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateStatus updates the session status.
func (r *MemorySessionRepository) UpdateStatus(
	_ context.Context,
	id string,
	status SessionStatus,
	errorMsg string,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	session.Status = status
	session.ErrorMessage = errorMsg
	session.UpdatedAt = time.Now()
	if status == SessionStatusCompleted || status == SessionStatusFailed {
		now := time.Now()
		session.CompletedAt = &now
	}
	return nil
}

// SaveResults persists the rewrite, suggestions and the metric record.
func (r *MemorySessionRepository) SaveResults(
	_ context.Context,
	id string,
	refactoredCode string,
	warnings string,
	suggestions []RefactorSuggestion,
	metric *ComplianceMetric,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	now := time.Now()
	session.RefactoredCode = refactoredCode
	session.Warnings = warnings
	session.UpdatedAt = now
	for i := range suggestions {
		suggestions[i].SessionID = id
		suggestions[i].CreatedAt = now
	}
	session.Suggestions = append(session.Suggestions, suggestions...)
	if metric != nil {
		metric.SessionID = id
		metric.CreatedAt = now
		session.Metric = metric
	}
	return nil
}
