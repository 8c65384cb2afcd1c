// Package directory provides the in-memory activity directory.
package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"example.com/extracurricular/internal/domain"
)

// Memory stores activities in memory for the lifetime of its owner.
type Memory struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

// NewMemory constructs a directory populated with a copy of seed.
func NewMemory(seed map[string]domain.Activity) *Memory {
	activities := make(map[string]domain.Activity, len(seed))
	for name, activity := range seed {
		activities[name] = activity.Clone()
	}
	return &Memory{activities: activities}
}

// List implements domain.Directory.
func (m *Memory) List(ctx context.Context) (map[string]domain.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.Activity, len(m.activities))
	for name, activity := range m.activities {
		out[name] = activity.Clone()
	}
	return out, nil
}

// Get returns a single activity by name.
func (m *Memory) Get(ctx context.Context, name string) (domain.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	activity, ok := m.activities[name]
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: %q", domain.ErrActivityNotFound, name)
	}
	return activity.Clone(), nil
}

// AddParticipant implements domain.Directory.
func (m *Memory) AddParticipant(ctx context.Context, name, email string, enforceCapacity bool) (domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.activities[name]
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: %q", domain.ErrActivityNotFound, name)
	}
	if activity.HasParticipant(email) {
		return domain.Activity{}, fmt.Errorf("%w: %s", domain.ErrAlreadyRegistered, email)
	}
	if enforceCapacity && len(activity.Participants) >= activity.MaxParticipants {
		return domain.Activity{}, fmt.Errorf("%w: %q", domain.ErrActivityFull, name)
	}

	activity.Participants = append(activity.Participants, email)
	m.activities[name] = activity
	return activity.Clone(), nil
}

// RemoveParticipant implements domain.Directory.
func (m *Memory) RemoveParticipant(ctx context.Context, name, email string) (domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	activity, ok := m.activities[name]
	if !ok {
		return domain.Activity{}, fmt.Errorf("%w: %q", domain.ErrActivityNotFound, name)
	}
	idx := slices.Index(activity.Participants, email)
	if idx < 0 {
		return domain.Activity{}, fmt.Errorf("%w: %s", domain.ErrParticipantNotFound, email)
	}

	activity.Participants = slices.Delete(activity.Participants, idx, idx+1)
	m.activities[name] = activity
	return activity.Clone(), nil
}
