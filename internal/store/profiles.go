// Package store persists policy profiles, refactor sessions and their
// results.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"

	"github.com/antinvestor/codecraft/internal/policy"
)

// Common store errors.
var (
	ErrDatabaseUnavailable = errors.New("database connection is not available")
	ErrNotFound            = errors.New("record not found")
)

// PolicyProfile is the persisted form of a policy profile.
type PolicyProfile struct {
	ID        string       `json:"id"         gorm:"primaryKey"`
	Name      string       `json:"name"`
	Domain    string       `json:"domain"`
	Version   string       `json:"version"`
	Rules     []PolicyRule `json:"rules"      gorm:"foreignKey:ProfileID"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName returns the table name for the PolicyProfile model.
func (PolicyProfile) TableName() string {
	return "policy_profiles"
}

// PolicyRule is the persisted form of a single rule.
type PolicyRule struct {
	ID          string    `json:"id"           gorm:"primaryKey"`
	ProfileID   string    `json:"profile_id"   gorm:"index"`
	RuleKey     string    `json:"rule_key"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Expression  string    `json:"expression"`
	Severity    string    `json:"severity"`
	AutoFixable bool      `json:"auto_fixable"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for the PolicyRule model.
func (PolicyRule) TableName() string {
	return "policy_rules"
}

// ToDomain converts the persisted profile into its evaluation form.
func (p *PolicyProfile) ToDomain() *policy.Profile {
	rules := make([]policy.Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, policy.Rule{
			RuleID:      r.ID,
			RuleKey:     r.RuleKey,
			Description: r.Description,
			Category:    r.Category,
			Expression:  r.Expression,
			Severity:    policy.ParseSeverity(r.Severity),
			AutoFixable: r.AutoFixable,
		})
	}
	return &policy.Profile{
		ProfileID: p.ID,
		Name:      p.Name,
		Domain:    p.Domain,
		Version:   p.Version,
		Rules:     rules,
	}
}

// ProfileFromDomain converts an evaluation profile into its persisted form.
func ProfileFromDomain(p *policy.Profile) *PolicyProfile {
	rules := make([]PolicyRule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rules = append(rules, PolicyRule{
			ID:          r.RuleID,
			ProfileID:   p.ProfileID,
			RuleKey:     r.RuleKey,
			Description: r.Description,
			Category:    r.Category,
			Expression:  r.Expression,
			Severity:    string(r.Severity),
			AutoFixable: r.AutoFixable,
		})
	}
	return &PolicyProfile{
		ID:      p.ProfileID,
		Name:    p.Name,
		Domain:  p.Domain,
		Version: p.Version,
		Rules:   rules,
	}
}

// ProfileRepository defines the interface for profile persistence.
type ProfileRepository interface {
	Create(ctx context.Context, profile *PolicyProfile) error
	GetByID(ctx context.Context, id string) (*PolicyProfile, error)
	List(ctx context.Context) ([]*PolicyProfile, error)
	Delete(ctx context.Context, id string) error
}

// PGProfileRepository is the PostgreSQL implementation of ProfileRepository.
type PGProfileRepository struct {
	pool pool.Pool
}

// NewProfileRepository creates a new profile repository. With a database
// pool it persists to PostgreSQL, otherwise it falls back to in-memory
// storage.
func NewProfileRepository(_ context.Context, p pool.Pool) ProfileRepository {
	if p != nil {
		return &PGProfileRepository{pool: p}
	}
	return &MemoryProfileRepository{
		profiles: make(map[string]*PolicyProfile),
	}
}

func (r *PGProfileRepository) db(ctx context.Context, readOnly bool) *gorm.DB {
	if r.pool == nil {
		return nil
	}
	return r.pool.DB(ctx, readOnly)
}

// Create creates a profile record along with its rules.
func (r *PGProfileRepository) Create(ctx context.Context, profile *PolicyProfile) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	for i := range profile.Rules {
		profile.Rules[i].ProfileID = profile.ID
		profile.Rules[i].CreatedAt = now
	}
	return db.Create(profile).Error
}

// GetByID retrieves a profile and its rules by ID.
func (r *PGProfileRepository) GetByID(ctx context.Context, id string) (*PolicyProfile, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var profile PolicyProfile
	if err := db.Preload("Rules").First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: profile %s", ErrNotFound, id)
		}
		return nil, err
	}
	return &profile, nil
}

// List lists all profiles with their rules.
func (r *PGProfileRepository) List(ctx context.Context) ([]*PolicyProfile, error) {
	db := r.db(ctx, true)
	if db == nil {
		return nil, ErrDatabaseUnavailable
	}

	var profiles []*PolicyProfile
	if err := db.Preload("Rules").Order("created_at").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Delete deletes a profile and its rules.
func (r *PGProfileRepository) Delete(ctx context.Context, id string) error {
	db := r.db(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}

	if err := db.Delete(&PolicyRule{}, "profile_id = ?", id).Error; err != nil {
		return err
	}
	return db.Delete(&PolicyProfile{}, "id = ?", id).Error
}

// MemoryProfileRepository is an in-memory profile repository for testing.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*PolicyProfile
}

// NewMemoryProfileRepository creates an in-memory profile repository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{
		profiles: make(map[string]*PolicyProfile),
	}
}

// Create creates a profile record.
func (r *MemoryProfileRepository) Create(_ context.Context, profile *PolicyProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	for i := range profile.Rules {
		profile.Rules[i].ProfileID = profile.ID
	}
	r.profiles[profile.ID] = profile
	return nil
}

// GetByID retrieves a profile by ID.
func (r *MemoryProfileRepository) GetByID(_ context.Context, id string) (*PolicyProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, id)
	}
	return profile, nil
}

// List lists all profiles.
func (r *MemoryProfileRepository) List(_ context.Context) ([]*PolicyProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*PolicyProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, p)
	}
	return result, nil
}

// Delete deletes a profile.
func (r *MemoryProfileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, id)
	return nil
}
