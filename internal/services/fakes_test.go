package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bugtracker-service/internal/models"
	"bugtracker-service/internal/repository"
)

// memStore is an in-memory BugStore. Mutate holds the store lock for the whole
// read-modify-write, like the row lock in the Postgres store.
type memStore struct {
	mu     sync.Mutex
	bugs   map[uuid.UUID]models.Bug
	events []models.BugEvent
	gets   int

	// afterGet runs once GetByID has copied the record and released the lock.
	afterGet func()
}

func newMemStore() *memStore {
	return &memStore{bugs: make(map[uuid.UUID]models.Bug)}
}

func (m *memStore) Create(_ context.Context, bug *models.Bug, event *models.BugEvent) (*models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bugs[bug.ID] = *bug
	event.BugID = bug.ID
	event.ID = uint(len(m.events) + 1)
	m.events = append(m.events, *event)
	out := m.bugs[bug.ID]
	return &out, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Bug, error) {
	m.mu.Lock()
	m.gets++
	bug, ok := m.bugs[id]
	hook := m.afterGet
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, models.ErrBugNotFound
	}
	return &bug, nil
}

func (m *memStore) List(_ context.Context, projectID uuid.UUID, _ models.BugSort) ([]models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bug
	for _, b := range m.bugs {
		if b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Mutate(_ context.Context, id uuid.UUID, fn repository.MutateFunc) (*models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bug, ok := m.bugs[id]
	if !ok {
		return nil, models.ErrBugNotFound
	}
	event, err := fn(&bug)
	if err != nil {
		return nil, err
	}
	m.bugs[id] = bug
	if event != nil {
		event.ID = uint(len(m.events) + 1)
		m.events = append(m.events, *event)
	}
	out := m.bugs[id]
	return &out, nil
}

func (m *memStore) Events(_ context.Context, bugID uuid.UUID) ([]models.BugEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.BugEvent
	for _, e := range m.events {
		if e.BugID == bugID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) snapshot(id uuid.UUID) models.Bug {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bugs[id]
}

// memberSet is a mutable MembershipResolver that counts lookups.
type memberSet struct {
	mu      sync.Mutex
	members map[uuid.UUID][]uuid.UUID
	lookups int
}

func newMemberSet() *memberSet {
	return &memberSet{members: make(map[uuid.UUID][]uuid.UUID)}
}

func (s *memberSet) set(projectID uuid.UUID, ids ...uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[projectID] = ids
}

func (s *memberSet) MembersOf(_ context.Context, projectID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	ids, ok := s.members[projectID]
	if !ok {
		return nil, models.ErrProjectNotFound
	}
	return append([]uuid.UUID(nil), ids...), nil
}

// stepClock returns t0, t0+step, t0+2*step, ...
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{next: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}
