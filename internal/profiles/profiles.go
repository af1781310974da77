// Package profiles exposes the profile directory the contact services
// consume. Profile management itself lives in another system; this module
// only needs ownership resolution and the contact-capture flag.
package profiles

import (
	"context"
	"fmt"
	"sync"

	id "twym/pkg/domain"
	"twym/pkg/platform/sentinel"
)

// Profile is the slice of a user profile the contact services care about.
type Profile struct {
	ID                    id.ProfileID
	UserID                id.UserID
	DisplayName           string
	ContactCaptureEnabled bool
}

// Directory resolves profiles for ownership checks and capture gating.
type Directory interface {
	// FindByUserID returns the user's profile, or nil when the user has
	// none (which also means the user does not exist here).
	FindByUserID(ctx context.Context, userID id.UserID) (*Profile, error)
	// FindOne returns the profile or a sentinel.ErrNotFound wrapped error.
	FindOne(ctx context.Context, profileID id.ProfileID) (*Profile, error)
}

// InMemoryDirectory backs tests and dev mode.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	byID     map[id.ProfileID]*Profile
	byUserID map[id.UserID]*Profile
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		byID:     make(map[id.ProfileID]*Profile),
		byUserID: make(map[id.UserID]*Profile),
	}
}

// Put registers a profile, replacing any prior entry for the same user.
func (d *InMemoryDirectory) Put(profile *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *profile
	d.byID[profile.ID] = &copied
	d.byUserID[profile.UserID] = &copied
}

func (d *InMemoryDirectory) FindByUserID(_ context.Context, userID id.UserID) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.byUserID[userID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (d *InMemoryDirectory) FindOne(_ context.Context, profileID id.ProfileID) (*Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.byID[profileID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
}
