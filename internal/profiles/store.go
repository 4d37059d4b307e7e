// Package profiles keeps one profile document per user and notifies
// listeners after every write.
package profiles

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"billing/internal/logger"
)

// ErrNotFound is returned when no document has the requested id.
var ErrNotFound = errors.New("profile not found")

// Permissions is stored as a JSON array.
type Permissions []string

// Value implements driver.Valuer.
func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *Permissions) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("profiles: cannot scan %T into Permissions", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*p = out
	return nil
}

// Profile is the document kept for each user, keyed by user id.
type Profile struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	IsAdmin     bool        `gorm:"not null;default:false" json:"isAdmin"`
	Permissions Permissions `gorm:"type:text" json:"permissions"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Fields lists the fields Update changes. Nil fields are left untouched.
type Fields struct {
	Name        *string
	IsAdmin     *bool
	Permissions *[]string
}

// Change describes one committed write. Before is nil for a create and
// After is nil for a delete.
type Change struct {
	ID     string
	Before *Profile
	After  *Profile
}

// Listener is called after a write commits. Its error is logged and does
// not undo the write.
type Listener func(ctx context.Context, change Change) error

// Store persists profiles in a gorm database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewStore migrates the profiles table and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	const op = "NewStore"

	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, fmt.Errorf("%s: failed to migrate profiles: %w", op, err)
	}
	return &Store{
		db:  db,
		log: logger.WithComponent("profiles"),
	}, nil
}

// OnWrite registers l for every subsequent write.
func (s *Store) OnWrite(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Get returns the profile with id.
func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	const op = "Get"

	p, err := find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrNotFound)
	}
	return p, nil
}

// List returns every profile keyed by id.
func (s *Store) List(ctx context.Context) (map[string]Profile, error) {
	const op = "List"

	var all []Profile
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := make(map[string]Profile, len(all))
	for _, p := range all {
		out[p.ID] = p
	}
	return out, nil
}

// Set creates or replaces the whole document.
func (s *Store) Set(ctx context.Context, p Profile) error {
	const op = "Set"

	if p.ID == "" {
		return fmt.Errorf("%s: profile id is empty", op)
	}
	if p.Permissions == nil {
		p.Permissions = Permissions{}
	}

	var before *Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if before, err = find(tx, p.ID); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	after := p
	s.notify(ctx, Change{ID: p.ID, Before: before, After: &after})
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, id string, fields Fields) error {
	const op = "Update"

	var before, after *Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if before, err = find(tx, id); err != nil {
			return err
		}
		if before == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}

		next := *before
		if fields.Name != nil {
			next.Name = *fields.Name
		}
		if fields.IsAdmin != nil {
			next.IsAdmin = *fields.IsAdmin
		}
		if fields.Permissions != nil {
			next.Permissions = append(Permissions{}, *fields.Permissions...)
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		after = &next
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notify(ctx, Change{ID: id, Before: before, After: after})
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "Delete"

	var before *Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if before, err = find(tx, id); err != nil || before == nil {
			return err
		}
		return tx.Delete(&Profile{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if before != nil {
		s.notify(ctx, Change{ID: id, Before: before})
	}
	return nil
}

func (s *Store) notify(ctx context.Context, change Change) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		if err := l(ctx, change); err != nil {
			s.log.Error().Err(err).Str("profile_id", change.ID).Msg("Profile write listener failed")
		}
	}
}

func find(tx *gorm.DB, id string) (*Profile, error) {
	var p Profile
	err := tx.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
