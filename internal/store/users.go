package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// User identifies who requested a refactor session.
type User struct {
	ID        string    `json:"id"         gorm:"primaryKey"`
	Username  string    `json:"username"   gorm:"uniqueIndex"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Upsert(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// PGUserRepository is the PostgreSQL implementation of UserRepository.
type PGUserRepository struct {
	pool pool.Pool
}

// NewUserRepository creates a new user repository. With a database pool
// it persists to PostgreSQL, otherwise it falls back to in-memory
// storage.
func NewUserRepository(_ context.Context, p pool.Pool) UserRepository {
	if p != nil {
		return &PGUserRepository{pool: p}
	}
	return &MemoryUserRepository{users: make(map[string]*User)}
}

func (r *PGUserRepository) db(ctx context.Context, readOnly bool) *gorm.DB {
	if r.pool == nil {
		return nil
	}
	return r.pool.DB(ctx, readOnly)
}

// Upsert returns the user with the given username, creating it on first
// sight.
func (r *PGUserRepository) Upsert(ctx context.Context, username string) (*User, error) {
	db := r.db(ctx, false)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var user User
	err := db.First(&user, "username = ?", username).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	user = User{
		ID:        xid.New().String(),
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if createErr := db.Create(&user).Error; createErr != nil {
		return nil, createErr
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *PGUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var user User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

// MemoryUserRepository is an in-memory user repository for testing.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryUserRepository creates an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*User)}
}

// Upsert returns the user with the given username, creating it on first
// sight.
func (r *MemoryUserRepository) Upsert(_ context.Context, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}

	now := time.Now()
	user := &User{
		ID:        xid.New().String(),
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.users[user.ID] = user
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return user, nil
}
